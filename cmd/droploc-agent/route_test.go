package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apandit646/droploc"
	"github.com/stretchr/testify/require"
)

func TestParseRoute(t *testing.T) {
	r, err := ParseRoute([]byte(`
interval: 10ms
points:
  - {latitude: 12.9716, longitude: 77.5946}
  - {latitude: 12.9721, longitude: 77.5952}
`))
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, r.Interval)
	require.False(t, r.Loop)
	require.Equal(t, []droploc.Position{
		{Latitude: 12.9716, Longitude: 77.5946},
		{Latitude: 12.9721, Longitude: 77.5952},
	}, r.Points)
}

func TestParseRoute_Errors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		errMsg string
	}{
		{"empty", "interval: 1s\n", "no points"},
		{"negative interval", "interval: -1s\npoints: [{latitude: 1, longitude: 1}]\n", "must be positive"},
		{"out of range", "points: [{latitude: 91, longitude: 1}]\n", "point 0"},
		{"not yaml", "points: [", "parse route"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoute([]byte(tt.doc))
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestParseRoute_DefaultInterval(t *testing.T) {
	r, err := ParseRoute([]byte("points: [{latitude: 1, longitude: 2}]\n"))
	require.NoError(t, err)
	require.Equal(t, defaultRouteInterval, r.Interval)
}

func TestLoadRoute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "route.yaml")
	require.NoError(t, os.WriteFile(path, []byte("points: [{latitude: 1, longitude: 2}]\n"), 0o600))

	r, err := LoadRoute(path)
	require.NoError(t, err)
	require.Len(t, r.Points, 1)

	_, err = LoadRoute(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRoute_Replay(t *testing.T) {
	r := &Route{
		Interval: 5 * time.Millisecond,
		Points:   []droploc.Position{{Latitude: 1, Longitude: 1}, {Latitude: 2, Longitude: 2}},
	}

	var got []droploc.Position
	err := r.Replay(t.Context(), func(p droploc.Position) error {
		got = append(got, p)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, r.Points, got)
}

func TestRoute_ReplayLoopsUntilCancelled(t *testing.T) {
	r := &Route{
		Interval: time.Millisecond,
		Loop:     true,
		Points:   []droploc.Position{{Latitude: 1, Longitude: 1}},
	}

	ctx, cancel := context.WithCancel(t.Context())
	count := 0
	err := r.Replay(ctx, func(droploc.Position) error {
		count++
		if count == 3 {
			cancel()
		}
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 3, count)
}

func TestRoute_ReplayStopsOnUpdateError(t *testing.T) {
	r := &Route{Interval: time.Millisecond, Loop: true, Points: []droploc.Position{{Latitude: 1, Longitude: 1}}}
	boom := errors.New("boom")

	err := r.Replay(t.Context(), func(droploc.Position) error { return boom })
	require.ErrorIs(t, err, boom)
}
