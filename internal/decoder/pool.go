package decoder

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrTerminated is returned by Acquire once the pool was terminated
var ErrTerminated = errors.New("decoder: pool terminated")

const (
	defaultPoolSize = 4
	maxPoolSize     = 16
)

// DefaultSize returns the number of logical CPUs, capped at 16
func DefaultSize() int {
	n := runtime.NumCPU()
	if n <= 0 {
		n = defaultPoolSize
	}
	if n > maxPoolSize {
		n = maxPoolSize
	}
	return n
}

// Pool hands out a fixed number of worker slots. Waiting callers are served
// strictly in arrival order.
type Pool struct {
	mu         sync.Mutex
	size       int
	free       []int
	waiters    []chan int
	terminated bool
}

// NewPool creates a pool with size workers. A size <= 0 uses DefaultSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultSize()
	}

	free := make([]int, size)
	for i := range free {
		free[i] = size - 1 - i
	}

	return &Pool{size: size, free: free}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Acquire blocks until a worker is free and returns its id. It fails with
// ctx.Err() when ctx is cancelled while waiting and with ErrTerminated once
// the pool is terminated.
func (p *Pool) Acquire(ctx context.Context) (int, error) {
	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		return -1, ErrTerminated
	}
	if n := len(p.free); n > 0 {
		w := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return w, nil
	}

	ch := make(chan int, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case w, ok := <-ch:
		if !ok {
			return -1, ErrTerminated
		}
		return w, nil
	case <-ctx.Done():
	}

	p.mu.Lock()
	for i, c := range p.waiters {
		if c == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return -1, ctx.Err()
		}
	}
	p.mu.Unlock()

	// a worker was handed over (or the pool terminated) while ctx was cancelled
	if w, ok := <-ch; ok {
		p.Release(w)
	}
	return -1, ctx.Err()
}

// Release returns worker w to the pool or hands it to the oldest waiter
func (p *Pool) Release(w int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminated {
		return
	}

	if len(p.waiters) > 0 {
		ch := p.waiters[0]
		p.waiters = p.waiters[1:]
		ch <- w
		return
	}

	p.free = append(p.free, w)
}

// Terminate wakes every waiter with ErrTerminated. Calling it more than once
// has no further effect.
func (p *Pool) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminated {
		return
	}
	p.terminated = true

	for _, ch := range p.waiters {
		close(ch)
	}
	p.waiters = nil
	p.free = nil
}
