package cache

import (
	"context"
	"errors"

	"github.com/coocood/freecache"
	lru "github.com/hashicorp/golang-lru"
	gocache "github.com/patrickmn/go-cache"
)

// Memory 进程内缓存，不做持久化
type Memory struct {
	items *gocache.Cache
}

// NewMemory 创建进程内缓存
func NewMemory() *Memory {
	return &Memory{items: gocache.New(gocache.NoExpiration, 0)}
}

// Get 实现 Cache
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	value, _ := v.([]byte)
	return value, true, nil
}

// Set 实现 Cache
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.items.Set(key, value, gocache.NoExpiration)
	return nil
}

// Delete 实现 Cache
func (m *Memory) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

// Clear 实现 Cache
func (m *Memory) Clear(_ context.Context) error {
	m.items.Flush()
	return nil
}

// Freecache 基于 freecache 的定容缓存
type Freecache struct {
	items *freecache.Cache
}

// NewFreecache 创建容量为 size 字节的缓存
func NewFreecache(size int) *Freecache {
	return &Freecache{items: freecache.NewCache(size)}
}

// Get 实现 Cache
func (f *Freecache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := f.items.Get([]byte(key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Set 实现 Cache
func (f *Freecache) Set(_ context.Context, key string, value []byte) error {
	return f.items.Set([]byte(key), value, 0)
}

// Delete 实现 Cache
func (f *Freecache) Delete(_ context.Context, key string) error {
	f.items.Del([]byte(key))
	return nil
}

// Clear 实现 Cache
func (f *Freecache) Clear(_ context.Context) error {
	f.items.Clear()
	return nil
}

// LRU 定长最近最少使用缓存
type LRU struct {
	items *lru.Cache
}

// NewLRU 创建最多 size 条的缓存
func NewLRU(size int) (*LRU, error) {
	items, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &LRU{items: items}, nil
}

// Get 实现 Cache
func (l *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	value, _ := v.([]byte)
	return value, true, nil
}

// Set 实现 Cache
func (l *LRU) Set(_ context.Context, key string, value []byte) error {
	l.items.Add(key, value)
	return nil
}

// Delete 实现 Cache
func (l *LRU) Delete(_ context.Context, key string) error {
	l.items.Remove(key)
	return nil
}

// Clear 实现 Cache
func (l *LRU) Clear(_ context.Context) error {
	l.items.Purge()
	return nil
}

// Noop 永不命中的缓存
type Noop struct{}

// Get 实现 Cache
func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set 实现 Cache
func (Noop) Set(context.Context, string, []byte) error { return nil }

// Delete 实现 Cache
func (Noop) Delete(context.Context, string) error { return nil }

// Clear 实现 Cache
func (Noop) Clear(context.Context) error { return nil }
