package droploc

import "sync"

// stateSubscriber is one SubscribeConnection channel.
type stateSubscriber struct {
	ch     chan ConnectionState
	mu     sync.Mutex
	closed bool
}

// trySend delivers state without blocking. A slow subscriber misses intermediate
// states and sees the next one.
func (s *stateSubscriber) trySend(state ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- state:
	default:
	}
}

func (s *stateSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
