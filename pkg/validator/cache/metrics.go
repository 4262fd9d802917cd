package cache

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// 请求结果标签
const (
	resultHit    = "hit"
	resultMiss   = "miss"
	resultError  = "error"
	resultWrite  = "write"
	resultDelete = "delete"
	resultClear  = "clear"
)

// Metrics 缓存访问计数
type Metrics struct {
	requests *prometheus.CounterVec
}

// NewMetrics 创建并注册计数器，重复注册时复用已注册的计数器
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "katydid",
		Subsystem: "validator_mapping_cache",
		Name:      "requests_total",
		Help:      "Mapping metadata cache requests by backend and result.",
	}, []string{"backend", "result"})

	if reg != nil {
		if err := reg.Register(requests); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return nil, err
			}
			requests = existing
		}
	}

	return &Metrics{requests: requests}, nil
}

// Requests 计数器
func (m *Metrics) Requests() *prometheus.CounterVec {
	return m.requests
}

// instrumented 带计数的缓存
type instrumented struct {
	next     Cache
	backend  string
	requests *prometheus.CounterVec
}

// Instrument 为缓存增加计数，metrics 为 nil 时原样返回
func Instrument(next Cache, backend string, metrics *Metrics) Cache {
	if metrics == nil {
		return next
	}
	return &instrumented{next: next, backend: backend, requests: metrics.requests}
}

// Unwrap 返回被包装的缓存
func (c *instrumented) Unwrap() Cache {
	return c.next
}

// Get 实现 Cache
func (c *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok, err := c.next.Get(ctx, key)
	switch {
	case err != nil:
		c.requests.WithLabelValues(c.backend, resultError).Inc()
	case ok:
		c.requests.WithLabelValues(c.backend, resultHit).Inc()
	default:
		c.requests.WithLabelValues(c.backend, resultMiss).Inc()
	}
	return value, ok, err
}

// Set 实现 Cache
func (c *instrumented) Set(ctx context.Context, key string, value []byte) error {
	return c.record(c.next.Set(ctx, key, value), resultWrite)
}

// Delete 实现 Cache
func (c *instrumented) Delete(ctx context.Context, key string) error {
	return c.record(c.next.Delete(ctx, key), resultDelete)
}

// Clear 实现 Cache
func (c *instrumented) Clear(ctx context.Context) error {
	return c.record(c.next.Clear(ctx), resultClear)
}

// record 按写操作的结果计数，出错时记为 error
func (c *instrumented) record(err error, result string) error {
	if err != nil {
		result = resultError
	}
	c.requests.WithLabelValues(c.backend, result).Inc()
	return err
}

// Unwrap 剥离计数包装，返回实际后端
func Unwrap(c Cache) Cache {
	for {
		u, ok := c.(interface{ Unwrap() Cache })
		if !ok {
			return c
		}
		c = u.Unwrap()
	}
}
