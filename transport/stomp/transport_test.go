package stomp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apandit646/droploc/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeBroker is a single-connection STOMP broker on an httptest server.
type fakeBroker struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	reject   string

	mu      sync.Mutex
	ws      *websocket.Conn
	writeMu sync.Mutex
	auth    string
	frames  []Frame
	subs    map[string]string // destination -> subscription id
}

func newFakeBroker(t *testing.T) *fakeBroker {
	t.Helper()

	b := &fakeBroker{
		upgrader: websocket.Upgrader{Subprotocols: Subprotocols},
		subs:     make(map[string]string),
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)

	return b
}

func (b *fakeBroker) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws-location"
}

func (b *fakeBroker) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.ws = ws
	b.auth = r.Header.Get("Authorization")
	b.mu.Unlock()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frames, err := ParseFrames(data)
		if err != nil {
			return
		}
		for _, f := range frames {
			b.handle(f)
		}
	}
}

func (b *fakeBroker) handle(f Frame) {
	b.mu.Lock()
	b.frames = append(b.frames, f)
	switch f.Command {
	case CmdSubscribe:
		dest, _ := f.Header("destination")
		id, _ := f.Header("id")
		b.subs[dest] = id
	case CmdUnsubscribe:
		id, _ := f.Header("id")
		for dest, sid := range b.subs {
			if sid == id {
				delete(b.subs, dest)
			}
		}
	}
	reject := b.reject
	b.mu.Unlock()

	switch f.Command {
	case CmdConnect:
		if reject != "" {
			b.send(NewFrame(CmdError, nil, "message", reject))
			return
		}
		b.send(NewFrame(CmdConnected, nil, "version", "1.2"))
	case CmdDisconnect:
		receipt, _ := f.Header("receipt")
		b.send(NewFrame(CmdReceipt, nil, "receipt-id", receipt))
	}
}

func (b *fakeBroker) send(f Frame) {
	b.mu.Lock()
	ws := b.ws
	b.mu.Unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = ws.WriteMessage(websocket.TextMessage, f.Marshal())
}

// deliver sends a MESSAGE to whoever subscribed to dest and reports whether anyone had.
func (b *fakeBroker) deliver(dest, body string) bool {
	b.mu.Lock()
	id, ok := b.subs[dest]
	b.mu.Unlock()
	if !ok {
		return false
	}
	b.send(NewFrame(CmdMessage, []byte(body), "subscription", id, "destination", dest, "message-id", "m1"))

	return true
}

func (b *fakeBroker) received(command string) []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Frame
	for _, f := range b.frames {
		if f.Command == command {
			out = append(out, f)
		}
	}

	return out
}

func (b *fakeBroker) subscribed(dest string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[dest]

	return ok
}

func (b *fakeBroker) kill() {
	b.mu.Lock()
	ws := b.ws
	b.mu.Unlock()
	_ = ws.Close()
}

type staticCreds struct{}

func (staticCreds) Token() (string, bool)   { return "tok-123", true }
func (staticCreds) ActorID() (string, bool) { return "rider@example.com", true }

func TestTransport_HandshakeAndAuth(t *testing.T) {
	b := newFakeBroker(t)
	tr := New(b.url(), WithCredentials(staticCreds{}))

	c, err := tr.Dial(t.Context(), nil)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	connects := b.received(CmdConnect)
	require.Len(t, connects, 1)
	login, _ := connects[0].Header("login")
	passcode, _ := connects[0].Header("passcode")
	require.Equal(t, "rider@example.com", login)
	require.Equal(t, "tok-123", passcode)

	b.mu.Lock()
	require.Equal(t, "Bearer tok-123", b.auth)
	b.mu.Unlock()
}

func TestTransport_SubscribeDeliverUnsubscribe(t *testing.T) {
	b := newFakeBroker(t)
	c, err := New(b.url()).Dial(t.Context(), nil)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	got := make(chan string, 4)
	sub, err := c.Subscribe("location/C1", func(topic string, payload []byte) {
		got <- topic + " " + string(payload)
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.subscribed("/location/C1") }, time.Second, 5*time.Millisecond)

	require.True(t, b.deliver("/location/C1", `{"response":[]}`))
	select {
	case msg := <-got:
		require.Equal(t, `location/C1 {"response":[]}`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	require.Eventually(t, func() bool { return !b.subscribed("/location/C1") }, time.Second, 5*time.Millisecond)
	require.Len(t, b.received(CmdUnsubscribe), 1)
}

func TestTransport_Publish(t *testing.T) {
	b := newFakeBroker(t)
	c, err := New(b.url()).Dial(t.Context(), nil)
	require.NoError(t, err)

	require.NoError(t, c.Publish(t.Context(), "app/update-location", []byte(`{"token":"t"}`)))
	require.Eventually(t, func() bool { return len(b.received(CmdSend)) == 1 }, time.Second, 5*time.Millisecond)

	send := b.received(CmdSend)[0]
	dest, _ := send.Header("destination")
	require.Equal(t, "/app/update-location", dest)
	require.Equal(t, `{"token":"t"}`, string(send.Body))

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return len(b.received(CmdDisconnect)) == 1 }, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, c.Publish(t.Context(), "app/update-location", nil), types.ErrConnection)
}

func TestTransport_RejectedConnect(t *testing.T) {
	b := newFakeBroker(t)
	b.reject = "bad credentials"

	_, err := New(b.url()).Dial(t.Context(), nil)
	require.ErrorIs(t, err, types.ErrConnection)
	require.ErrorIs(t, err, ErrBrokerError)
	require.Contains(t, err.Error(), "bad credentials")
}

func TestTransport_DialRefused(t *testing.T) {
	_, err := New("ws://127.0.0.1:1/ws-location").Dial(t.Context(), nil)
	require.ErrorIs(t, err, types.ErrConnection)
}

func TestTransport_Lost(t *testing.T) {
	b := newFakeBroker(t)

	lost := make(chan error, 2)
	dialed := make(chan types.Conn, 1)
	c, err := New(b.url()).Dial(t.Context(), func(err error) {
		// The supervisor closes the connection from inside the callback.
		_ = (<-dialed).Close()
		lost <- err
	})
	require.NoError(t, err)
	dialed <- c

	b.kill()

	select {
	case err := <-lost:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loss not reported")
	}
	require.ErrorIs(t, c.Publish(t.Context(), "app/update-location", nil), types.ErrConnection)

	select {
	case <-lost:
		t.Fatal("loss reported twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransport_BrokerErrorFrameIsLoss(t *testing.T) {
	b := newFakeBroker(t)

	lost := make(chan error, 1)
	c, err := New(b.url()).Dial(t.Context(), func(err error) { lost <- err })
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	b.send(NewFrame(CmdError, []byte("session expired"), "message", "session expired"))

	select {
	case err := <-lost:
		require.ErrorIs(t, err, ErrBrokerError)
	case <-time.After(2 * time.Second):
		t.Fatal("loss not reported")
	}
}
