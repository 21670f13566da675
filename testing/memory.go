package testing

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/apandit646/droploc/types"
)

// ErrMemoryConnClosed is returned by operations on a closed in-memory connection.
var ErrMemoryConnClosed = errors.New("memory transport: connection closed")

// OpKind names a recorded broker operation.
type OpKind string

// Recorded operation kinds.
const (
	OpSubscribe   OpKind = "subscribe"
	OpUnsubscribe OpKind = "unsubscribe"
	OpPublish     OpKind = "publish"
	OpClose       OpKind = "close"
)

// Op is one operation observed by a MemoryBroker.
type Op struct {
	Kind  OpKind
	Topic string
}

// MemoryBroker is an in-process publish/subscribe broker implementing types.Transport.
//
// It records every operation in order and tracks, per topic prefix, the highest
// number of simultaneously live subscriptions ever observed. Deliveries run
// synchronously on the caller's goroutine.
//
// Example:
//
//	broker := droploctest.NewMemoryBroker()
//	eng, _ := droploc.NewEngine(&cfg, broker, resolver, creds)
//	// ...
//	require.Equal(t, 1, broker.MaxLive("location/"))
type MemoryBroker struct {
	mu         sync.Mutex
	conns      map[*memoryConn]struct{}
	subs       map[*memorySub]struct{}
	ops        []Op
	published  map[string][][]byte
	maxLive    map[string]int
	watch      []string
	dialErr    error
	subErr     error
	publishErr error
	dials      int
}

var _ types.Transport = (*MemoryBroker)(nil)

// NewMemoryBroker creates an empty broker. Topic prefixes passed in watch have their
// concurrent subscription high-water mark tracked (see MaxLive).
func NewMemoryBroker(watch ...string) *MemoryBroker {
	if len(watch) == 0 {
		watch = []string{"location/"}
	}

	return &MemoryBroker{
		conns:     make(map[*memoryConn]struct{}),
		subs:      make(map[*memorySub]struct{}),
		published: make(map[string][][]byte),
		maxLive:   make(map[string]int),
		watch:     watch,
	}
}

// Dial implements types.Transport.
func (b *MemoryBroker) Dial(ctx context.Context, onLost func(err error)) (types.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	if b.dialErr != nil {
		return nil, b.dialErr
	}

	c := &memoryConn{broker: b, onLost: onLost}
	b.conns[c] = struct{}{}

	return c, nil
}

// FailDial makes subsequent dials fail with err (nil restores success).
func (b *MemoryBroker) FailDial(err error) {
	b.mu.Lock()
	b.dialErr = err
	b.mu.Unlock()
}

// FailSubscribe makes subsequent subscribes fail with err (nil restores success).
func (b *MemoryBroker) FailSubscribe(err error) {
	b.mu.Lock()
	b.subErr = err
	b.mu.Unlock()
}

// FailPublish makes subsequent publishes fail with err (nil restores success).
func (b *MemoryBroker) FailPublish(err error) {
	b.mu.Lock()
	b.publishErr = err
	b.mu.Unlock()
}

// Deliver pushes payload to every live subscriber of topic, as the server would.
// It returns the number of handlers invoked.
func (b *MemoryBroker) Deliver(topic string, payload []byte) int {
	b.mu.Lock()
	var handlers []types.MessageHandler
	for s := range b.subs {
		if s.topic == topic {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(topic, payload)
	}

	return len(handlers)
}

// Drop severs every open connection and reports the loss through each dialer's
// onLost callback.
func (b *MemoryBroker) Drop(cause error) {
	if cause == nil {
		cause = errors.New("memory transport: connection dropped")
	}

	b.mu.Lock()
	conns := make([]*memoryConn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		c.release()
		if c.onLost != nil {
			c.onLost(cause)
		}
	}
}

// Ops returns every recorded operation in order.
func (b *MemoryBroker) Ops() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Op(nil), b.ops...)
}

// OpsWithPrefix returns recorded subscribe/unsubscribe operations whose topic has prefix.
func (b *MemoryBroker) OpsWithPrefix(prefix string) []Op {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Op
	for _, op := range b.ops {
		if (op.Kind == OpSubscribe || op.Kind == OpUnsubscribe) && strings.HasPrefix(op.Topic, prefix) {
			out = append(out, op)
		}
	}

	return out
}

// Published returns the payloads published to topic.
func (b *MemoryBroker) Published(topic string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([][]byte(nil), b.published[topic]...)
}

// PublishCount returns how many messages were published to topic.
func (b *MemoryBroker) PublishCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.published[topic])
}

// Live returns the topics with a live subscription that start with prefix.
func (b *MemoryBroker) Live(prefix string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	for s := range b.subs {
		if strings.HasPrefix(s.topic, prefix) {
			out = append(out, s.topic)
		}
	}

	return out
}

// MaxLive returns the highest number of simultaneously live subscriptions observed
// for a watched prefix.
func (b *MemoryBroker) MaxLive(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.maxLive[prefix]
}

// OpenConns returns the number of connections not yet closed.
func (b *MemoryBroker) OpenConns() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.conns)
}

// Dials returns the number of Dial calls.
func (b *MemoryBroker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dials
}

// trackLocked updates high-water marks. Caller holds b.mu.
func (b *MemoryBroker) trackLocked() {
	for _, prefix := range b.watch {
		n := 0
		for s := range b.subs {
			if strings.HasPrefix(s.topic, prefix) {
				n++
			}
		}
		if n > b.maxLive[prefix] {
			b.maxLive[prefix] = n
		}
	}
}

type memoryConn struct {
	broker *MemoryBroker
	onLost func(err error)
	closed bool // guarded by broker.mu
}

func (c *memoryConn) Subscribe(topic string, handler types.MessageHandler) (types.Subscription, error) {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.closed {
		return nil, ErrMemoryConnClosed
	}
	if b.subErr != nil {
		return nil, b.subErr
	}

	s := &memorySub{conn: c, topic: topic, handler: handler}
	b.subs[s] = struct{}{}
	b.ops = append(b.ops, Op{Kind: OpSubscribe, Topic: topic})
	b.trackLocked()

	return s, nil
}

func (c *memoryConn) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.closed {
		return ErrMemoryConnClosed
	}
	if b.publishErr != nil {
		return b.publishErr
	}

	b.published[topic] = append(b.published[topic], append([]byte(nil), payload...))
	b.ops = append(b.ops, Op{Kind: OpPublish, Topic: topic})

	return nil
}

func (c *memoryConn) Close() error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.closed {
		return nil
	}
	c.releaseLocked()
	b.ops = append(b.ops, Op{Kind: OpClose})

	return nil
}

func (c *memoryConn) release() {
	c.broker.mu.Lock()
	c.releaseLocked()
	c.broker.mu.Unlock()
}

func (c *memoryConn) releaseLocked() {
	b := c.broker
	c.closed = true
	delete(b.conns, c)
	for s := range b.subs {
		if s.conn == c {
			delete(b.subs, s)
		}
	}
}

type memorySub struct {
	conn    *memoryConn
	topic   string
	handler types.MessageHandler
}

func (s *memorySub) Topic() string {
	return s.topic
}

func (s *memorySub) Unsubscribe() error {
	b := s.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s]; !ok {
		return nil
	}
	delete(b.subs, s)
	b.ops = append(b.ops, Op{Kind: OpUnsubscribe, Topic: s.topic})

	return nil
}
