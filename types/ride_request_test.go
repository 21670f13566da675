package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRideRequestEventUnmarshal(t *testing.T) {
	t.Run("full payload", func(t *testing.T) {
		var ev RideRequestEvent
		err := json.Unmarshal([]byte(`{
			"requestId": "R1",
			"requestingActor": {"name": "Nia", "phone": "+15550100"},
			"destination": "Union Square",
			"distanceToPickup": 1.25,
			"estimatedFare": 14.5
		}`), &ev)
		require.NoError(t, err)
		require.Equal(t, "R1", ev.RequestID)
		require.True(t, ev.HasRequestID())
		require.Equal(t, Requester{Name: "Nia", Phone: "+15550100"}, ev.Requester)
		require.Equal(t, "Union Square", ev.Destination)
		require.InDelta(t, 1.25, ev.DistanceToPickup, 1e-9)

		fare, ok := ev.Fare()
		require.True(t, ok)
		require.InDelta(t, 14.5, fare, 1e-9)
	})

	t.Run("numeric request id", func(t *testing.T) {
		var ev RideRequestEvent
		err := json.Unmarshal([]byte(`{"requestId": 981, "requestingActor": {"name": "A"}}`), &ev)
		require.NoError(t, err)
		require.Equal(t, "981", ev.RequestID)
	})

	t.Run("absent id and fare", func(t *testing.T) {
		var ev RideRequestEvent
		err := json.Unmarshal([]byte(`{"requestingActor": {"name": "A", "phone": "1"}, "destination": "Pier 39"}`), &ev)
		require.NoError(t, err)
		require.False(t, ev.HasRequestID())

		_, ok := ev.Fare()
		require.False(t, ok)

		named := ev.WithRequestID("req-3")
		require.Equal(t, "req-3", named.RequestID)
		require.False(t, ev.HasRequestID(), "WithRequestID must not mutate the receiver")
	})

	t.Run("missing requester is rejected", func(t *testing.T) {
		var ev RideRequestEvent
		require.Error(t, json.Unmarshal([]byte(`{"requestId": "R1"}`), &ev))
	})

	t.Run("not an object", func(t *testing.T) {
		var ev RideRequestEvent
		require.Error(t, json.Unmarshal([]byte(`"hello"`), &ev))
	})
}
