// Package natstransport carries droploc topics over NATS core publish/subscribe.
//
// Topics map to subjects by replacing "/" with ".", so "location/8928308280fffff"
// becomes the subject "location.8928308280fffff". Reconnection is disabled: a dropped
// connection is reported once through the Dial callback and the session is over.
package natstransport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apandit646/droploc/internal/logging"
	"github.com/apandit646/droploc/internal/natsutil"
	"github.com/apandit646/droploc/types"
	"github.com/nats-io/nats.go"
)

// ErrConnectionClosed is passed to the lost callback when the server closed the
// connection without reporting an error.
var ErrConnectionClosed = errors.New("nats connection closed by server")

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithName sets the NATS client name shown in server monitoring.
func WithName(name string) Option {
	return func(t *Transport) {
		t.name = name
	}
}

// WithToken authenticates with a static server token.
func WithToken(token string) Option {
	return func(t *Transport) {
		t.natsOpts = append(t.natsOpts, nats.Token(token))
	}
}

// WithNATSOptions appends raw nats.Options. Reconnect options are overridden.
func WithNATSOptions(opts ...nats.Option) Option {
	return func(t *Transport) {
		t.natsOpts = append(t.natsOpts, opts...)
	}
}

// Transport dials NATS servers. It is safe for concurrent use.
type Transport struct {
	url      string
	name     string
	logger   types.Logger
	natsOpts []nats.Option
}

var _ types.Transport = (*Transport)(nil)

// New creates a transport for the given server URL(s), comma separated.
//
// Example:
//
//	tr := natstransport.New("nats://127.0.0.1:4222", natstransport.WithName("rider-app"))
func New(url string, opts ...Option) *Transport {
	t := &Transport{url: url, name: "droploc"}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logging.NewNop()
	}

	return t
}

// Subject converts a droploc topic into a NATS subject.
func Subject(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

// Dial implements types.Transport.
func (t *Transport) Dial(ctx context.Context, onLost func(err error)) (types.Conn, error) {
	c := &conn{logger: t.logger}

	opts := append([]nats.Option{}, t.natsOpts...)
	opts = append(opts,
		nats.Name(t.name),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.lost(err, onLost)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.lost(nil, onLost)
		}),
	)
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	type result struct {
		nc  *nats.Conn
		err error
	}
	done := make(chan result, 1)
	go func() {
		nc, err := nats.Connect(t.url, opts...)
		done <- result{nc: nc, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, natsutil.Classify("connect", r.err)
		}
		c.nc = r.nc
		t.logger.Debug("nats connected", "url", r.nc.ConnectedUrlRedacted())

		return c, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.nc != nil {
				c.nc = r.nc
				_ = c.Close()
			}
		}()

		return nil, ctx.Err()
	}
}

type conn struct {
	nc     *nats.Conn
	logger types.Logger

	mu      sync.Mutex
	closing bool
	lostSet bool
}

// lost reports the end of the connection once, unless Close initiated it.
func (c *conn) lost(err error, onLost func(error)) {
	c.mu.Lock()
	if c.closing || c.lostSet {
		c.mu.Unlock()
		return
	}
	c.lostSet = true
	c.mu.Unlock()

	if err == nil {
		err = ErrConnectionClosed
	}
	c.logger.Warn("nats connection lost", "error", err)
	if onLost != nil {
		onLost(err)
	}
}

func (c *conn) Subscribe(topic string, handler types.MessageHandler) (types.Subscription, error) {
	sub, err := c.nc.Subscribe(Subject(topic), func(msg *nats.Msg) {
		handler(topic, msg.Data)
	})
	if err != nil {
		return nil, natsutil.Classify("subscribe", fmt.Errorf("subscribe %s: %w", topic, err))
	}

	return &subscription{topic: topic, sub: sub}, nil
}

func (c *conn) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.nc.Publish(Subject(topic), payload); err != nil {
		return natsutil.Classify("publish", fmt.Errorf("publish %s: %w", topic, err))
	}

	return nil
}

func (c *conn) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	c.nc.Close()

	return nil
}

type subscription struct {
	topic string
	sub   *nats.Subscription
}

func (s *subscription) Topic() string {
	return s.topic
}

func (s *subscription) Unsubscribe() error {
	if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
		return fmt.Errorf("unsubscribe %s: %w", s.topic, err)
	}

	return nil
}
