package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"rider", RoleRider, false},
		{"Passenger", RoleRider, false},
		{"user", RoleRider, false},
		{"driver", RoleDriver, false},
		{"SERVICE-PROVIDER", RoleDriver, false},
		{"ServiceProvider", RoleDriver, false},
		{"User", RoleRider, false},
		{" provider ", RoleDriver, false},
		{"", RoleUnknown, false},
		{"pilot", RoleUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCandidateUnmarshal(t *testing.T) {
	t.Run("string id and role name", func(t *testing.T) {
		var c Candidate
		err := json.Unmarshal([]byte(`{"id":"d-7","name":"Asha","latitude":37.78,"longitude":-122.43,"role":"driver"}`), &c)
		require.NoError(t, err)
		require.Equal(t, Candidate{
			ID:       "d-7",
			Name:     "Asha",
			Position: Position{Latitude: 37.78, Longitude: -122.43},
			Role:     RoleDriver,
		}, c)
	})

	t.Run("numeric id and numeric role", func(t *testing.T) {
		var c Candidate
		err := json.Unmarshal([]byte(`{"id":42,"name":"Ravi","latitude":0,"longitude":0,"role":1}`), &c)
		require.NoError(t, err)
		require.Equal(t, "42", c.ID)
		require.Equal(t, RoleRider, c.Role)
	})

	t.Run("missing coordinates", func(t *testing.T) {
		var c Candidate
		err := json.Unmarshal([]byte(`{"id":"x","name":"n","latitude":1}`), &c)
		require.Error(t, err)
	})

	t.Run("unknown role decodes as RoleUnknown", func(t *testing.T) {
		var c Candidate
		err := json.Unmarshal([]byte(`{"id":"x","latitude":1,"longitude":2,"role":"pilot"}`), &c)
		require.NoError(t, err)
		require.Equal(t, RoleUnknown, c.Role)

		err = json.Unmarshal([]byte(`{"id":"y","latitude":1,"longitude":2,"role":7}`), &c)
		require.NoError(t, err)
		require.Equal(t, RoleUnknown, c.Role)
	})

	t.Run("backend role names", func(t *testing.T) {
		var c Candidate
		err := json.Unmarshal([]byte(`{"id":7,"name":"Asha","latitude":1,"longitude":2,"role":"ServiceProvider"}`), &c)
		require.NoError(t, err)
		require.Equal(t, RoleDriver, c.Role)

		err = json.Unmarshal([]byte(`{"id":8,"name":"Ravi","latitude":1,"longitude":2,"role":"User"}`), &c)
		require.NoError(t, err)
		require.Equal(t, RoleRider, c.Role)
	})

	t.Run("round trip keeps flattened shape", func(t *testing.T) {
		in := Candidate{ID: "r1", Name: "Mo", Position: Position{Latitude: 1.5, Longitude: 2.5}, Role: RoleRider}
		data, err := json.Marshal(in)
		require.NoError(t, err)
		require.JSONEq(t, `{"id":"r1","name":"Mo","latitude":1.5,"longitude":2.5,"role":"rider"}`, string(data))
	})
}

func TestPositionIsValid(t *testing.T) {
	require.True(t, Position{Latitude: 37.78825, Longitude: -122.4324}.IsValid())
	require.True(t, Position{Latitude: -90, Longitude: 180}.IsValid())
	require.False(t, Position{Latitude: 91}.IsValid())
	require.False(t, Position{Longitude: -180.5}.IsValid())
	require.False(t, Position{Latitude: math.NaN()}.IsValid())
	require.False(t, Position{Longitude: math.Inf(1)}.IsValid())
	require.Equal(t, "37.788250,-122.432400", Position{Latitude: 37.78825, Longitude: -122.4324}.String())
}
