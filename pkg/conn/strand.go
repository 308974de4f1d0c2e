package conn

import "sync"

// Strand serializes tasks posted onto a Pool. Tasks run in posting order and
// never overlap.
type Strand struct {
	pool *Pool

	mu      sync.Mutex
	queue   []func()
	running bool
}

// NewStrand returns a strand executing on pool.
func NewStrand(pool *Pool) *Strand {
	return &Strand{pool: pool}
}

// Post queues fn behind every task already posted to the strand.
func (s *Strand) Post(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if err := s.pool.Post(s.drain); err != nil {
		// The pool is stopping; completions still have to run so that
		// references are released and sockets closed.
		go s.drain()
	}
}

func (s *Strand) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.pool.run(fn)
	}
}
