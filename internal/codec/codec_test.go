package codec

import (
	"testing"

	"github.com/apandit646/droploc/types"
	"github.com/stretchr/testify/require"
)

func TestEncodeLocationUpdate(t *testing.T) {
	data, err := EncodeLocationUpdate("tok", types.Position{Latitude: 37.78825, Longitude: -122.4324})
	require.NoError(t, err)
	require.JSONEq(t, `{"token":"tok","location":{"latitude":37.78825,"longitude":-122.4324}}`, string(data))

	back, err := DecodeLocationUpdate(data)
	require.NoError(t, err)
	require.Equal(t, "tok", back.Token)
	require.Equal(t, 37.78825, back.Location.Latitude)
}

func TestDecodeCandidates(t *testing.T) {
	t.Run("snapshot", func(t *testing.T) {
		got, err := DecodeCandidates([]byte(`{"response":[
			{"id":"d1","name":"Asha","latitude":37.78,"longitude":-122.43,"role":"driver"},
			{"id":2,"name":"Ravi","latitude":37.79,"longitude":-122.41,"role":"rider"}
		]}`))
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, "d1", got[0].ID)
		require.Equal(t, "2", got[1].ID)
		require.Equal(t, types.RoleRider, got[1].Role)
	})

	t.Run("mixed roles keep the snapshot", func(t *testing.T) {
		got, err := DecodeCandidates([]byte(`{"response":[
			{"id":7,"name":"Asha","latitude":37.78,"longitude":-122.43,"role":"ServiceProvider"},
			{"id":8,"name":"Ravi","latitude":37.79,"longitude":-122.41,"role":"User"},
			{"id":9,"name":"Ops","latitude":37.77,"longitude":-122.42,"role":"Admin"},
			{"id":"d2","name":"Mo","latitude":37.76,"longitude":-122.44,"role":"driver"}
		]}`))
		require.NoError(t, err)
		require.Len(t, got, 4)
		require.Equal(t, types.RoleDriver, got[0].Role)
		require.Equal(t, types.RoleRider, got[1].Role)
		require.Equal(t, types.RoleUnknown, got[2].Role)
		require.Equal(t, types.RoleDriver, got[3].Role)
	})

	t.Run("null response is empty", func(t *testing.T) {
		got, err := DecodeCandidates([]byte(`{"response":null}`))
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Empty(t, got)
	})

	malformed := map[string]string{
		"empty":            ``,
		"whitespace":       "  \n",
		"not json":         `location please`,
		"missing response": `{"data":[]}`,
		"response object":  `{"response":{"id":"x"}}`,
		"bad candidate":    `{"response":[{"id":"x","latitude":1}]}`,
		"truncated":        `{"response":[`,
	}
	for name, payload := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCandidates([]byte(payload))
			require.Error(t, err)
		})
	}
}

func TestEncodeCandidates(t *testing.T) {
	data, err := EncodeCandidates(nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"response":[]}`, string(data))

	data, err = EncodeCandidates([]types.Candidate{{ID: "a", Position: types.Position{Latitude: 1, Longitude: 2}}})
	require.NoError(t, err)

	got, err := DecodeCandidates(data)
	require.NoError(t, err)
	require.Equal(t, "a", got[0].ID)
}

func TestDecodeRideRequest(t *testing.T) {
	ev, err := DecodeRideRequest([]byte(`{"requestId":"R1","requestingActor":{"name":"Nia","phone":"1"},"destination":"Pier 39","distanceToPickup":0.8}`))
	require.NoError(t, err)
	require.Equal(t, "R1", ev.RequestID)
	require.Equal(t, "Nia", ev.Requester.Name)

	_, err = DecodeRideRequest([]byte(`{"requestId":"R1"}`))
	require.Error(t, err)

	_, err = DecodeRideRequest(nil)
	require.Error(t, err)
}

func TestDecodeCellPush(t *testing.T) {
	cell, err := DecodeCellPush([]byte(`{"response":"8928308280fffff"}`))
	require.NoError(t, err)
	require.Equal(t, types.CellAddress("8928308280fffff"), cell)

	for _, payload := range []string{``, `{}`, `{"response":""}`, `{"response":12}`, `"C1"`} {
		_, err := DecodeCellPush([]byte(payload))
		require.Error(t, err, "payload %q", payload)
	}

	data, err := EncodeCellPush("C7")
	require.NoError(t, err)
	cell, err = DecodeCellPush(data)
	require.NoError(t, err)
	require.Equal(t, types.CellAddress("C7"), cell)
}

func TestTopics(t *testing.T) {
	topics := DefaultTopics()

	require.Equal(t, "app/update-location", topics.UpdateLocation)
	require.Equal(t, "location/C1", topics.Location("C1"))
	require.Equal(t, "notification/driver@example.com", topics.Notification("driver@example.com"))
	require.Equal(t, "user/driver@example.com/location-sub", topics.CellPush("driver@example.com"))

	cell, ok := topics.CellFromLocation("location/C2")
	require.True(t, ok)
	require.Equal(t, types.CellAddress("C2"), cell)

	_, ok = topics.CellFromLocation("notification/C2")
	require.False(t, ok)
	_, ok = topics.CellFromLocation("location/")
	require.False(t, ok)
}
