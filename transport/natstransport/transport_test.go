package natstransport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/apandit646/droploc/internal/codec"
	droploctest "github.com/apandit646/droploc/testing"
	"github.com/apandit646/droploc/types"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	require.Equal(t, "location.8928308280fffff", Subject("location/8928308280fffff"))
	require.Equal(t, "app.update-location", Subject("/app/update-location"))
	require.Equal(t, "user.a@b.com.location-sub", Subject("user/a@b.com/location-sub"))
}

func TestTransport_PublishSubscribe(t *testing.T) {
	ns, observer := droploctest.StartEmbeddedNATS(t)
	tr := New(ns.ClientURL(), WithLogger(droploctest.NewTestLogger(t)))

	dc, err := tr.Dial(t.Context(), nil)
	require.NoError(t, err)
	defer func() { _ = dc.Close() }()

	t.Run("inbound snapshot", func(t *testing.T) {
		got := make(chan string, 1)
		sub, err := dc.Subscribe("location/C1", func(topic string, payload []byte) {
			candidates, err := codec.DecodeCandidates(payload)
			if err == nil && len(candidates) == 1 {
				got <- topic + " " + candidates[0].ID
			}
		})
		require.NoError(t, err)
		require.Equal(t, "location/C1", sub.Topic())
		require.NoError(t, dc.(*conn).nc.Flush())

		payload, err := codec.EncodeCandidates([]types.Candidate{{ID: "d1", Role: types.RoleDriver}})
		require.NoError(t, err)
		require.NoError(t, observer.Publish("location.C1", payload))

		select {
		case msg := <-got:
			require.Equal(t, "location/C1 d1", msg)
		case <-time.After(2 * time.Second):
			t.Fatal("snapshot not delivered")
		}

		require.NoError(t, sub.Unsubscribe())
		require.NoError(t, sub.Unsubscribe())
	})

	t.Run("outbound heartbeat", func(t *testing.T) {
		heard := make(chan []byte, 1)
		osub, err := observer.Subscribe("app.update-location", func(m *nats.Msg) { heard <- m.Data })
		require.NoError(t, err)
		defer func() { _ = osub.Unsubscribe() }()
		droploctest.FlushObserver(t, observer)

		body, err := codec.EncodeLocationUpdate("tok", types.Position{Latitude: 1, Longitude: 2})
		require.NoError(t, err)
		require.NoError(t, dc.Publish(t.Context(), "app/update-location", body))

		select {
		case data := <-heard:
			u, err := codec.DecodeLocationUpdate(data)
			require.NoError(t, err)
			require.Equal(t, "tok", u.Token)
		case <-time.After(2 * time.Second):
			t.Fatal("heartbeat not received")
		}
	})
}

func TestTransport_DialFailure(t *testing.T) {
	tr := New("nats://127.0.0.1:1")

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	_, err := tr.Dial(ctx, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, types.ErrConnection)
}

func TestTransport_LostOnServerShutdown(t *testing.T) {
	ns, _ := droploctest.StartEmbeddedNATS(t)
	tr := New(ns.ClientURL())

	var (
		mu    sync.Mutex
		calls int
	)
	lost := make(chan error, 4)
	conn, err := tr.Dial(t.Context(), func(err error) {
		mu.Lock()
		calls++
		mu.Unlock()
		lost <- err
	})
	require.NoError(t, err)

	ns.Shutdown()

	select {
	case err := <-lost:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loss not reported")
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	require.Equal(t, 1, calls, "loss is reported once")
	mu.Unlock()

	require.ErrorIs(t, conn.Publish(t.Context(), "app/update-location", []byte("{}")), types.ErrConnection)
}

func TestTransport_CloseIsNotLoss(t *testing.T) {
	ns, _ := droploctest.StartEmbeddedNATS(t)
	tr := New(ns.ClientURL())

	lost := make(chan error, 1)
	conn, err := tr.Dial(t.Context(), func(err error) { lost <- err })
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	select {
	case err := <-lost:
		t.Fatalf("explicit close reported as loss: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}
