package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fileEntry 缓存文件内容，保存原始键以排除哈希碰撞
type fileEntry struct {
	Key   string `json:"k"`
	Value []byte `json:"v"`
}

// Filesystem 基于文件的缓存，每个键一个文件，位于 <directory>/<namespace>
type Filesystem struct {
	fs        afero.Fs
	directory string
	namespace string
	root      string
}

// NewFilesystem 创建文件缓存并确保目录存在
func NewFilesystem(fs afero.Fs, directory, namespace string) (*Filesystem, error) {
	root := filepath.Join(directory, namespace)
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Filesystem{
		fs:        fs,
		directory: directory,
		namespace: namespace,
		root:      root,
	}, nil
}

// Directory 缓存根目录
func (f *Filesystem) Directory() string {
	return f.directory
}

// Namespace 命名空间
func (f *Filesystem) Namespace() string {
	return f.namespace
}

func (f *Filesystem) path(key string) string {
	return filepath.Join(f.root, strconv.FormatUint(xxh3.HashString(key), 16))
}

// Get 实现 Cache
func (f *Filesystem) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := afero.ReadFile(f.fs, f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, err
	}
	if entry.Key != key {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Set 实现 Cache
func (f *Filesystem) Set(_ context.Context, key string, value []byte) error {
	data, err := json.Marshal(fileEntry{Key: key, Value: value})
	if err != nil {
		return err
	}
	return afero.WriteFile(f.fs, f.path(key), data, 0o644)
}

// Delete 实现 Cache
func (f *Filesystem) Delete(_ context.Context, key string) error {
	if err := f.fs.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear 实现 Cache
func (f *Filesystem) Clear(_ context.Context) error {
	if err := f.fs.RemoveAll(f.root); err != nil {
		return err
	}
	return f.fs.MkdirAll(f.root, 0o755)
}
