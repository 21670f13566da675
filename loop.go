package droploc

import "sync"

// mailbox is the unbounded work queue of the engine loop.
//
// post never blocks, so transport goroutines can hand work to the loop even while
// the loop itself is waiting on the transport (closing a session, for instance).
type mailbox struct {
	mu    sync.Mutex
	queue []func()
	open  bool
	wake  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

// post appends fn. It reports false once the mailbox is closed.
func (m *mailbox) post(fn func()) bool {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	m.signal()

	return true
}

func (m *mailbox) setOpen(open bool) {
	m.mu.Lock()
	m.open = open
	m.mu.Unlock()

	m.signal()
}

// take removes everything queued so far.
func (m *mailbox) take() ([]func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := m.queue
	m.queue = nil

	return batch, m.open
}

func (m *mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// run executes posted work in order until the mailbox is closed and drained.
func (m *mailbox) run(done chan<- struct{}) {
	defer close(done)

	for {
		batch, open := m.take()
		for _, fn := range batch {
			fn()
		}

		if len(batch) > 0 {
			continue
		}
		if !open {
			return
		}
		<-m.wake
	}
}
