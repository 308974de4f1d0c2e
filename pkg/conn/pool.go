package conn

import (
	"log/slog"
	"runtime"
	"sync"
)

// Pool runs posted tasks on a fixed number of worker goroutines.
//
// The queue is unbounded: a strand posting from a worker must never wait for
// another worker to make room.
type Pool struct {
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool

	wg sync.WaitGroup
}

// NewPool starts workers goroutines. A value below one uses runtime.NumCPU.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{logger: logger.With("component", "pool")}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Post queues fn. It returns ErrPoolClosed after Close.
func (p *Pool) Post(fn func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.tasks = append(p.tasks, fn)
	p.mu.Unlock()
	p.cond.Signal()
	return nil
}

// Close stops accepting tasks, lets the workers drain the queue and waits for
// them to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.tasks) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.tasks) == 0 {
			p.mu.Unlock()
			return
		}
		fn := p.tasks[0]
		p.tasks[0] = nil
		p.tasks = p.tasks[1:]
		p.mu.Unlock()

		p.run(fn)
	}
}

func (p *Pool) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panic", "panic", r)
		}
	}()
	fn()
}
