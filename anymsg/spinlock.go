package anymsg

import (
	"runtime"
	"sync/atomic"
)

// spinlock guards the transmitter-local containers. Critical sections are a
// handful of slice operations, so expected contention is sub-microsecond;
// anything longer belongs under the zone mutex instead. Lock ordering: the
// zone mutex may be held while acquiring a spinlock, never the reverse.
type spinlock struct {
	state atomic.Bool
}

func (x *spinlock) lock() {
	for !x.state.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (x *spinlock) unlock() {
	x.state.Store(false)
}
