package a2dp

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// RMutex - mutex that the owning goroutine can lock again
type RMutex struct {
	mu    sync.Mutex
	owner atomic.Uint64
	depth int
}

func (m *RMutex) Lock() {
	id := goid()
	if m.owner.Load() == id {
		m.depth++
		return
	}

	m.mu.Lock()
	m.owner.Store(id)
	m.depth = 1
}

func (m *RMutex) Unlock() {
	if m.owner.Load() != goid() {
		panic("a2dp: unlock of RMutex not owned by goroutine")
	}

	if m.depth--; m.depth == 0 {
		m.owner.Store(0)
		m.mu.Unlock()
	}
}

var goroutinePrefix = []byte("goroutine ")

// goid parses "goroutine 123 [running]:" from the stack header
func goid() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
