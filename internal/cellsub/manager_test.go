package cellsub

import (
	"errors"
	"testing"

	"github.com/apandit646/droploc/internal/codec"
	droploctest "github.com/apandit646/droploc/testing"
	"github.com/apandit646/droploc/types"
	"github.com/stretchr/testify/require"
)

// inline runs posted work immediately; tests drive the manager from one goroutine.
func inline(fn func()) { fn() }

type snapshots struct {
	cells []types.CellAddress
	sizes []int
}

func (s *snapshots) handle(cell types.CellAddress, candidates []types.Candidate) {
	s.cells = append(s.cells, cell)
	s.sizes = append(s.sizes, len(candidates))
}

func dial(t *testing.T, broker *droploctest.MemoryBroker) types.Conn {
	t.Helper()

	conn, err := broker.Dial(t.Context(), nil)
	require.NoError(t, err)

	return conn
}

func snapshotPayload(t *testing.T, ids ...string) []byte {
	t.Helper()

	candidates := make([]types.Candidate, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, types.Candidate{
			ID:       id,
			Name:     "driver " + id,
			Position: types.Position{Latitude: 37.78, Longitude: -122.43},
			Role:     types.RoleDriver,
		})
	}
	data, err := codec.EncodeCandidates(candidates)
	require.NoError(t, err)

	return data
}

func TestManager_CellChangeProtocol(t *testing.T) {
	broker := droploctest.NewMemoryBroker("location/")
	conn := dial(t, broker)
	m := New(inline, (&snapshots{}).handle)

	require.Equal(t, types.Unsubscribed, m.State())
	require.Empty(t, m.Topic())

	moved, err := m.Update(conn, "C1")
	require.NoError(t, err)
	require.True(t, moved)
	require.Equal(t, types.Subscribed, m.State())
	require.Equal(t, "location/C1", m.Topic())

	moved, err = m.Update(conn, "C1")
	require.NoError(t, err)
	require.False(t, moved, "same cell must not resubscribe")

	moved, err = m.Update(conn, "C2")
	require.NoError(t, err)
	require.True(t, moved)

	require.Equal(t, []droploctest.Op{
		{Kind: droploctest.OpSubscribe, Topic: "location/C1"},
		{Kind: droploctest.OpUnsubscribe, Topic: "location/C1"},
		{Kind: droploctest.OpSubscribe, Topic: "location/C2"},
	}, broker.OpsWithPrefix("location/"))
	require.Equal(t, []string{"location/C2"}, broker.Live("location/"))
}

func TestManager_NeverOverlaps(t *testing.T) {
	broker := droploctest.NewMemoryBroker("location/")
	conn := dial(t, broker)
	m := New(inline, (&snapshots{}).handle)

	for _, cell := range []types.CellAddress{"a", "b", "b", "c", "a", "d", "d", "e"} {
		_, err := m.Update(conn, cell)
		require.NoError(t, err)
		require.LessOrEqual(t, len(broker.Live("location/")), 1)
	}

	require.Equal(t, 1, broker.MaxLive("location/"))
}

func TestManager_DeliversOnlyCurrentCell(t *testing.T) {
	broker := droploctest.NewMemoryBroker()
	conn := dial(t, broker)
	got := &snapshots{}

	// Queue posted work so deliveries can be applied after a cell change.
	var queued []func()
	m := New(func(fn func()) { queued = append(queued, fn) }, got.handle)

	_, err := m.Update(conn, "C1")
	require.NoError(t, err)
	require.Equal(t, 1, broker.Deliver("location/C1", snapshotPayload(t, "d1", "d2")))

	// The C1 snapshot is still waiting for the loop when the actor moves on.
	_, err = m.Update(conn, "C2")
	require.NoError(t, err)
	require.Equal(t, 1, broker.Deliver("location/C2", snapshotPayload(t, "d3")))

	for _, fn := range queued {
		fn()
	}

	require.Equal(t, []types.CellAddress{"C2"}, got.cells)
	require.Equal(t, []int{1}, got.sizes)
}

func TestManager_MalformedSnapshot(t *testing.T) {
	broker := droploctest.NewMemoryBroker()
	conn := dial(t, broker)
	got := &snapshots{}

	var absorbed []error
	m := New(inline, got.handle, WithErrorHandler(func(err error) { absorbed = append(absorbed, err) }))

	_, err := m.Update(conn, "C1")
	require.NoError(t, err)

	broker.Deliver("location/C1", []byte(`{"response": [{"id": 1`))
	broker.Deliver("location/C1", []byte(`{"other": []}`))
	broker.Deliver("location/C1", snapshotPayload(t, "d1"))

	require.Len(t, absorbed, 2)
	for _, err := range absorbed {
		require.ErrorIs(t, err, types.ErrMalformedMessage)
		var mm *types.MalformedMessageError
		require.ErrorAs(t, err, &mm)
		require.Equal(t, "location/C1", mm.Topic)
	}
	require.Equal(t, []types.CellAddress{"C1"}, got.cells)
	require.Equal(t, types.Subscribed, m.State())
}

func TestManager_SubscribeFailure(t *testing.T) {
	broker := droploctest.NewMemoryBroker()
	conn := dial(t, broker)
	m := New(inline, (&snapshots{}).handle)

	_, err := m.Update(conn, "C1")
	require.NoError(t, err)

	boom := errors.New("subscription rejected")
	broker.FailSubscribe(boom)

	moved, err := m.Update(conn, "C2")
	require.False(t, moved)
	require.ErrorIs(t, err, types.ErrConnection)
	require.ErrorIs(t, err, boom)
	require.Equal(t, types.Unsubscribed, m.State())
	require.Empty(t, broker.Live("location/"))

	// The same cell is retried on the next sample.
	broker.FailSubscribe(nil)
	moved, err = m.Update(conn, "C2")
	require.NoError(t, err)
	require.True(t, moved)
}

func TestManager_NotConnected(t *testing.T) {
	m := New(inline, (&snapshots{}).handle)

	_, err := m.Update(nil, "C1")
	require.ErrorIs(t, err, types.ErrNotConnected)
	require.Equal(t, types.Unsubscribed, m.State())
}

func TestManager_Teardown(t *testing.T) {
	t.Run("explicit unsubscribe", func(t *testing.T) {
		broker := droploctest.NewMemoryBroker()
		conn := dial(t, broker)
		got := &snapshots{}
		m := New(inline, got.handle)

		_, err := m.Update(conn, "C1")
		require.NoError(t, err)

		m.Teardown(true)
		require.Equal(t, types.Unsubscribed, m.State())
		require.Empty(t, m.Cell())
		require.Empty(t, broker.Live("location/"))

		m.Teardown(true)
		require.Len(t, broker.OpsWithPrefix("location/"), 2)
	})

	t.Run("session already gone", func(t *testing.T) {
		broker := droploctest.NewMemoryBroker()
		conn := dial(t, broker)
		got := &snapshots{}

		var queued []func()
		m := New(func(fn func()) { queued = append(queued, fn) }, got.handle)

		_, err := m.Update(conn, "C1")
		require.NoError(t, err)
		broker.Deliver("location/C1", snapshotPayload(t, "d1"))

		m.Teardown(false)
		require.Equal(t, []droploctest.Op{
			{Kind: droploctest.OpSubscribe, Topic: "location/C1"},
		}, broker.OpsWithPrefix("location/"))

		for _, fn := range queued {
			fn()
		}
		require.Empty(t, got.cells, "snapshots after teardown are discarded")
	})
}

func TestManager_UnsubscribeFailureStillMoves(t *testing.T) {
	broker := droploctest.NewMemoryBroker()
	conn := dial(t, broker)
	m := New(inline, (&snapshots{}).handle, WithLogger(droploctest.NewTestLogger(t)))

	_, err := m.Update(conn, "C1")
	require.NoError(t, err)

	m.sub = failingSub{Subscription: m.sub}

	moved, err := m.Update(conn, "C2")
	require.NoError(t, err)
	require.True(t, moved)
	require.Equal(t, types.CellAddress("C2"), m.Cell())
}

type failingSub struct {
	types.Subscription
}

func (failingSub) Unsubscribe() error {
	return errors.New("unsubscribe timed out")
}
