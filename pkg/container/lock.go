package container

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// digLock 串行化对 dig 的调用，持有者所在的 goroutine 可以重入
// 构造函数运行在持有锁的 goroutine 中，其内部对容器的调用（如在构造函数中执行验证，
// 验证器再由容器构造）直接进入 dig；其它 goroutine 仍需等待
type digLock struct {
	mu    sync.Mutex
	owner atomic.Uint64
	depth int
}

func (l *digLock) lock() {
	id := goroutineID()
	if l.owner.Load() == id {
		l.depth++
		return
	}
	l.mu.Lock()
	l.owner.Store(id)
	l.depth = 1
}

func (l *digLock) unlock() {
	l.depth--
	if l.depth == 0 {
		l.owner.Store(0)
		l.mu.Unlock()
	}
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID 从栈信息的首行 "goroutine N [...]" 解析当前 goroutine 编号
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		panic("container: cannot parse goroutine id: " + err.Error())
	}
	return id
}
