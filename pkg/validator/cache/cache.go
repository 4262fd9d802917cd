package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

// 内置后端名称
const (
	BackendFilesystem = "filesystem"
	BackendMemory     = "memory"
	BackendNone       = "none"
	BackendFreecache  = "freecache"
	BackendLRU        = "lru"
	BackendRedis      = "redis"
	BackendNoop       = "noop"
)

const (
	// DefaultNamespace 默认命名空间
	DefaultNamespace = "katydid.validator"

	// defaultFreecacheSize freecache 默认容量（字节）
	defaultFreecacheSize = 8 * 1024 * 1024

	// defaultLRUSize lru 默认条目数
	defaultLRUSize = 1024
)

var (
	// ErrUnknownBackend 未知的缓存后端
	ErrUnknownBackend = errors.New("cache: unknown backend")

	// ErrInvalidOptions 后端参数不合法
	ErrInvalidOptions = errors.New("cache: invalid options")
)

// Cache 映射元数据缓存
type Cache interface {
	// Get 读取缓存，未命中时 ok 为 false
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set 写入缓存
	Set(ctx context.Context, key string, value []byte) error

	// Delete 删除缓存项，不存在时不报错
	Delete(ctx context.Context, key string) error

	// Clear 清空当前命名空间
	Clear(ctx context.Context) error
}

// Options 内置后端参数
type Options struct {
	// Fs 文件系统（filesystem）
	Fs afero.Fs `mapstructure:"-"`
	// Directory 缓存根目录（filesystem）
	Directory string `mapstructure:"directory"`
	// Namespace 命名空间（filesystem、redis 的键前缀）
	Namespace string `mapstructure:"namespace"`
	// Size 容量：freecache 为字节数，lru 为条目数
	Size int `mapstructure:"size"`
	// Addr redis 地址
	Addr string `mapstructure:"addr"`
	// Password redis 密码
	Password string `mapstructure:"password"`
	// DB redis 库
	DB int `mapstructure:"db"`
	// TTL redis 过期时间，0 表示不过期
	TTL time.Duration `mapstructure:"ttl"`
	// Client 已有的 redis 客户端，优先于 Addr
	Client redis.UniversalClient `mapstructure:"-"`
}

// IsBackend 是否为内置后端名称
func IsBackend(name string) bool {
	switch name {
	case BackendFilesystem, BackendMemory, BackendNone, BackendFreecache, BackendLRU, BackendRedis, BackendNoop:
		return true
	}
	return false
}

// Open 按名称创建内置后端
func Open(backend string, opts Options) (Cache, error) {
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}

	switch backend {
	case BackendFilesystem:
		if opts.Directory == "" {
			return nil, fmt.Errorf("%w: filesystem cache requires a directory", ErrInvalidOptions)
		}
		fs := opts.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		return NewFilesystem(fs, filepath.Clean(opts.Directory), opts.Namespace)
	case BackendMemory, BackendNone:
		return NewMemory(), nil
	case BackendFreecache:
		size := opts.Size
		if size <= 0 {
			size = defaultFreecacheSize
		}
		return NewFreecache(size), nil
	case BackendLRU:
		size := opts.Size
		if size <= 0 {
			size = defaultLRUSize
		}
		return NewLRU(size)
	case BackendRedis:
		client := opts.Client
		if client == nil {
			if opts.Addr == "" {
				return nil, fmt.Errorf("%w: redis cache requires an address", ErrInvalidOptions)
			}
			client = redis.NewClient(&redis.Options{
				Addr:     opts.Addr,
				Password: opts.Password,
				DB:       opts.DB,
			})
		}
		return NewRedis(client, opts.Namespace, opts.TTL), nil
	case BackendNoop:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
