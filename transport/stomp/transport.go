// Package stomp carries droploc topics as STOMP 1.2 destinations over a WebSocket.
//
// This is the dispatch backend's native wire: a topic "location/abc" is the STOMP
// destination "/location/abc", and heartbeats are SEND frames to
// "/app/update-location". Server heart-beating is disabled; loss is detected by the
// socket read failing or the broker sending an ERROR frame.
package stomp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/apandit646/droploc/internal/logging"
	"github.com/apandit646/droploc/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"
)

// Errors reported by the STOMP transport.
var (
	// ErrBrokerError wraps the message of an ERROR frame.
	ErrBrokerError = errors.New("stomp broker error")

	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("stomp connection closed")

	// ErrUnexpectedFrame is returned when the handshake receives anything but CONNECTED.
	ErrUnexpectedFrame = errors.New("stomp: unexpected frame")
)

// Subprotocols offered during the WebSocket handshake.
var Subprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithHost sets the STOMP virtual host header. Defaults to the URL host.
func WithHost(host string) Option {
	return func(t *Transport) {
		t.host = host
	}
}

// WithCredentials sends an Authorization bearer header with the upgrade request and
// a matching passcode header in CONNECT, read from creds at every dial.
func WithCredentials(creds types.CredentialStore) Option {
	return func(t *Transport) {
		t.creds = creds
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(t *Transport) {
		t.dialer = d
	}
}

// WithWriteTimeout bounds each frame write. Defaults to 10s.
func WithWriteTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.writeTimeout = d
	}
}

// Transport dials STOMP-over-WebSocket brokers.
type Transport struct {
	url          string
	host         string
	creds        types.CredentialStore
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	logger       types.Logger
}

var _ types.Transport = (*Transport)(nil)

// New creates a transport for a ws:// or wss:// endpoint, e.g. "ws://api.example.com/ws-location".
func New(url string, opts ...Option) *Transport {
	t := &Transport{
		url:          url,
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.dialer == nil {
		d := *websocket.DefaultDialer
		d.Subprotocols = Subprotocols
		t.dialer = &d
	}
	if t.logger == nil {
		t.logger = logging.NewNop()
	}

	return t
}

// Destination converts a droploc topic into a STOMP destination.
func Destination(topic string) string {
	return "/" + strings.TrimPrefix(topic, "/")
}

// Dial opens the WebSocket, performs the CONNECT handshake and starts the reader.
func (t *Transport) Dial(ctx context.Context, onLost func(err error)) (types.Conn, error) {
	header := http.Header{}
	connectHeaders := []string{
		"accept-version", "1.2,1.1,1.0",
		"heart-beat", "0,0",
	}
	if t.creds != nil {
		if token, ok := t.creds.Token(); ok {
			header.Set("Authorization", "Bearer "+token)
			connectHeaders = append(connectHeaders, "passcode", token)
		}
		if actor, ok := t.creds.ActorID(); ok {
			connectHeaders = append(connectHeaders, "login", actor)
		}
	}

	ws, resp, err := t.dialer.DialContext(ctx, t.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, &types.ConnectionError{Op: "connect", Cause: err}
	}

	host := t.host
	if host == "" && resp != nil && resp.Request != nil {
		host = resp.Request.URL.Hostname()
	}
	connectHeaders = append(connectHeaders, "host", host)

	c := &conn{
		ws:           ws,
		subs:         xsync.NewMap[string, *subscription](),
		onLost:       onLost,
		writeTimeout: t.writeTimeout,
		logger:       t.logger,
		doneCh:       make(chan struct{}),
	}

	if err := c.handshake(ctx, NewFrame(CmdConnect, nil, connectHeaders...)); err != nil {
		_ = ws.Close()
		return nil, &types.ConnectionError{Op: "connect", Cause: err}
	}

	go c.readLoop()

	return c, nil
}

type conn struct {
	ws           *websocket.Conn
	subs         *xsync.Map[string, *subscription]
	onLost       func(err error)
	writeTimeout time.Duration
	logger       types.Logger
	doneCh       chan struct{}

	writeMu sync.Mutex

	mu      sync.Mutex
	closing bool
	ended   bool
}

func (c *conn) handshake(ctx context.Context, connect Frame) error {
	if err := c.write(connect); err != nil {
		return err
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = c.ws.SetReadDeadline(deadline)
	defer func() { _ = c.ws.SetReadDeadline(time.Time{}) }()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("read CONNECTED: %w", err)
		}
		frames, err := ParseFrames(data)
		if err != nil {
			return err
		}
		if len(frames) == 0 {
			continue
		}

		f := frames[0]
		switch f.Command {
		case CmdConnected:
			version, _ := f.Header("version")
			c.logger.Debug("stomp connected", "version", version)

			return nil
		case CmdError:
			return brokerError(f)
		default:
			return fmt.Errorf("%w: %s", ErrUnexpectedFrame, f.Command)
		}
	}
}

func (c *conn) readLoop() {
	defer close(c.doneCh)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.end(err)
			return
		}

		frames, err := ParseFrames(data)
		if err != nil {
			c.logger.Warn("dropping unparsable stomp frame", "error", err)
		}
		for _, f := range frames {
			switch f.Command {
			case CmdMessage:
				c.dispatch(f)
			case CmdError:
				c.end(brokerError(f))
				_ = c.ws.Close()

				return
			case CmdReceipt:
			default:
				c.logger.Debug("ignoring stomp frame", "command", f.Command)
			}
		}
	}
}

func (c *conn) dispatch(f Frame) {
	id, _ := f.Header("subscription")
	sub, ok := c.subs.Load(id)
	if !ok {
		// Late message for a subscription that was already cancelled.
		return
	}
	sub.handler(sub.topic, f.Body)
}

// end reports loss once unless Close initiated the shutdown.
func (c *conn) end(err error) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	closing := c.closing
	c.mu.Unlock()

	c.subs.Clear()
	if closing {
		return
	}

	c.logger.Warn("stomp connection lost", "error", err)
	if c.onLost != nil {
		c.onLost(err)
	}
}

func (c *conn) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, f.Marshal()); err != nil {
		return err
	}

	return nil
}

func (c *conn) usable() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing || c.ended {
		return &types.ConnectionError{Op: "write", Cause: ErrClosed}
	}

	return nil
}

func (c *conn) Subscribe(topic string, handler types.MessageHandler) (types.Subscription, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}

	sub := &subscription{conn: c, id: uuid.NewString(), topic: topic, handler: handler}
	c.subs.Store(sub.id, sub)

	err := c.write(NewFrame(CmdSubscribe, nil,
		"id", sub.id,
		"destination", Destination(topic),
		"ack", "auto",
	))
	if err != nil {
		c.subs.Delete(sub.id)
		return nil, &types.ConnectionError{Op: "subscribe", Cause: err}
	}

	return sub, nil
}

func (c *conn) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.usable(); err != nil {
		return err
	}

	err := c.write(NewFrame(CmdSend, payload,
		"destination", Destination(topic),
		"content-type", "application/json",
	))
	if err != nil {
		return &types.ConnectionError{Op: "publish", Cause: err}
	}

	return nil
}

// Close sends DISCONNECT, closes the socket and waits for the reader to exit.
// Closing an already lost connection only releases the socket.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	ended := c.ended
	c.mu.Unlock()

	if !ended {
		_ = c.write(NewFrame(CmdDisconnect, nil, "receipt", uuid.NewString()))
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
	}
	err := c.ws.Close()
	if !ended {
		// After a loss the reader may be the caller (via onLost); never wait on it.
		<-c.doneCh
	}

	if err != nil && !ended && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("close websocket: %w", err)
	}

	return nil
}

type subscription struct {
	conn    *conn
	id      string
	topic   string
	handler types.MessageHandler
	once    sync.Once
}

func (s *subscription) Topic() string {
	return s.topic
}

func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.conn.subs.Delete(s.id)
		if s.conn.usable() != nil {
			return
		}
		if werr := s.conn.write(NewFrame(CmdUnsubscribe, nil, "id", s.id)); werr != nil {
			err = fmt.Errorf("unsubscribe %s: %w", s.topic, werr)
		}
	})

	return err
}

func brokerError(f Frame) error {
	msg, _ := f.Header("message")
	if msg == "" {
		msg = strings.TrimSpace(string(f.Body))
	}

	return fmt.Errorf("%w: %s", ErrBrokerError, msg)
}
