package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/apandit646/droploc"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	positions []droploc.Position
	resolved  []string
	rides     []string
	busy      map[string]bool
	current   *droploc.RideRequestEvent
	connects  int
}

func (f *fakeAgent) Connect(context.Context) error    { f.connects++; return nil }
func (f *fakeAgent) Disconnect(context.Context) error { return droploc.ErrNotConnected }
func (f *fakeAgent) UpdatePosition(pos droploc.Position) error {
	f.positions = append(f.positions, pos)
	return nil
}

func (f *fakeAgent) Accept(id string) (droploc.RideRequestEvent, error) {
	return f.resolve("accept:"+id, id)
}

func (f *fakeAgent) Decline(id string) (droploc.RideRequestEvent, error) {
	return f.resolve("decline:"+id, id)
}

func (f *fakeAgent) resolve(entry, id string) (droploc.RideRequestEvent, error) {
	if f.current == nil || f.current.RequestID != id {
		return droploc.RideRequestEvent{}, droploc.ErrUnknownRequest
	}
	f.resolved = append(f.resolved, entry)
	return *f.current, nil
}

func (f *fakeAgent) RequestRide(_ context.Context, provider, destination string) error {
	f.rides = append(f.rides, provider+"->"+destination)
	return nil
}

func (f *fakeAgent) RideStatus(provider string) (bool, time.Duration) {
	return f.busy[provider], 12 * time.Second
}

func (f *fakeAgent) Candidates() []droploc.RankedCandidate {
	return []droploc.RankedCandidate{{
		Candidate:  droploc.Candidate{ID: "d1", Name: "Asha", Role: droploc.RoleDriver},
		DistanceKm: 1.25,
		ETA:        150 * time.Second,
	}}
}

func (f *fakeAgent) Current() (droploc.RideRequestEvent, time.Time, bool) {
	if f.current == nil {
		return droploc.RideRequestEvent{}, time.Time{}, false
	}
	return *f.current, time.Now().Add(5 * time.Second), true
}

func (f *fakeAgent) Pending() []droploc.RideRequestEvent {
	return []droploc.RideRequestEvent{{RequestID: "r2", Requester: droploc.Requester{Name: "Ben"}}}
}

func (f *fakeAgent) CellState() (droploc.SubscriptionState, droploc.CellAddress) {
	return droploc.Subscribed, "8a2a1072b59ffff"
}

func (f *fakeAgent) ConnectionState() droploc.ConnectionState { return droploc.ConnectionConnected }

func (f *fakeAgent) Position() (droploc.Position, bool) {
	return droploc.Position{Latitude: 1, Longitude: 2}, true
}

func newTestConsole() (*Console, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Console{out: &buf, timeout: time.Second}, &buf
}

func TestConsole_Position(t *testing.T) {
	c, out := newTestConsole()
	f := &fakeAgent{}

	require.True(t, c.execute(t.Context(), f, "position 12.5 77.25"))
	require.Equal(t, []droploc.Position{{Latitude: 12.5, Longitude: 77.25}}, f.positions)

	require.True(t, c.execute(t.Context(), f, "pos north 77"))
	require.Contains(t, out.String(), `invalid latitude "north"`)

	require.True(t, c.execute(t.Context(), f, "pos 1"))
	require.Contains(t, out.String(), "usage: position")
}

func TestConsole_ResolveDisplayed(t *testing.T) {
	c, out := newTestConsole()
	f := &fakeAgent{current: &droploc.RideRequestEvent{RequestID: "r1"}}

	require.True(t, c.execute(t.Context(), f, "accept"))
	require.True(t, c.execute(t.Context(), f, "decline r9"))
	require.Equal(t, []string{"accept:r1"}, f.resolved)
	require.Contains(t, out.String(), "accepted r1")
	require.Contains(t, out.String(), "error: request is not the displayed notification")

	f.current = nil
	require.True(t, c.execute(t.Context(), f, "d"))
	require.Contains(t, out.String(), "nothing displayed")
}

func TestConsole_Ride(t *testing.T) {
	c, out := newTestConsole()
	f := &fakeAgent{busy: map[string]bool{"busy-driver": true}}

	require.True(t, c.execute(t.Context(), f, "ride drv-7 MG Road Metro"))
	require.Equal(t, []string{"drv-7->MG Road Metro"}, f.rides)

	require.True(t, c.execute(t.Context(), f, "ride busy-driver Airport"))
	require.Len(t, f.rides, 1)
	require.Contains(t, out.String(), "already in progress, 12s left")
}

func TestConsole_StatusAndLists(t *testing.T) {
	c, out := newTestConsole()
	f := &fakeAgent{current: &droploc.RideRequestEvent{RequestID: "r1", Requester: droploc.Requester{Name: "Ana"}}}

	c.execute(t.Context(), f, "status")
	c.execute(t.Context(), f, "candidates")
	c.execute(t.Context(), f, "pending")

	text := out.String()
	require.Contains(t, text, "connection: Connected")
	require.Contains(t, text, "8a2a1072b59ffff (Subscribed)")
	require.Contains(t, text, "Asha")
	require.Contains(t, text, "1.25 km")
	require.Contains(t, text, "eta 2m30s")
	require.Contains(t, text, "displayed: r1 from Ana")
	require.Contains(t, text, "queued:  r2 from Ben")
}

func TestConsole_SessionCommands(t *testing.T) {
	c, out := newTestConsole()
	f := &fakeAgent{}

	c.execute(t.Context(), f, "connect")
	c.execute(t.Context(), f, "disconnect")
	require.Equal(t, 1, f.connects)
	require.Contains(t, out.String(), "ok\n")
	require.Contains(t, out.String(), "error: ")
}

func TestConsole_QuitAndUnknown(t *testing.T) {
	c, out := newTestConsole()
	f := &fakeAgent{}

	require.True(t, c.execute(t.Context(), f, "   "))
	require.True(t, c.execute(t.Context(), f, "fly"))
	require.Contains(t, out.String(), "Unknown command: fly")
	require.False(t, c.execute(t.Context(), f, "quit"))
	require.False(t, c.execute(t.Context(), f, "Q"))
}
