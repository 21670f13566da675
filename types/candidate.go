package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies which side of the marketplace an actor is on.
type Role int

const (
	// RoleUnknown is the zero value for payloads that omit the role.
	RoleUnknown Role = iota

	// RoleRider is a passenger requesting rides.
	RoleRider

	// RoleDriver is a service provider accepting rides.
	RoleDriver
)

// String returns the wire representation of the role.
func (r Role) String() string {
	switch r {
	case RoleRider:
		return "rider"
	case RoleDriver:
		return "driver"
	default:
		return "unknown"
	}
}

// ParseRole parses a role name case-insensitively.
//
// "passenger" and "user" map to RoleRider; "ServiceProvider" and "provider" map to
// RoleDriver, matching the names used by the dispatch backend. Unrecognised names
// return RoleUnknown with an error.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rider", "passenger", "user":
		return RoleRider, nil
	case "driver", "provider", "serviceprovider", "service-provider", "service_provider":
		return RoleDriver, nil
	case "":
		return RoleUnknown, nil
	default:
		return RoleUnknown, fmt.Errorf("unknown role %q", s)
	}
}

// MarshalJSON encodes the role as its string name.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts either the string name or the numeric value. Names and
// numbers it does not recognise decode to RoleUnknown, so one odd actor never
// invalidates the payload around it.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r, _ = ParseRole(s)

		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("role must be a string or number: %w", err)
	}
	if n < int(RoleUnknown) || n > int(RoleDriver) {
		n = int(RoleUnknown)
	}
	*r = Role(n)

	return nil
}

// Candidate is another actor whose position is broadcast on the current cell's topic.
//
// The broadcast body flattens the position into latitude/longitude fields next to the
// identity fields, so Candidate carries its own JSON shape.
type Candidate struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Position Position `json:"-"`
	Role     Role     `json:"role"`
}

type candidateWire struct {
	ID        json.RawMessage `json:"id"`
	Name      string          `json:"name"`
	Latitude  *float64        `json:"latitude"`
	Longitude *float64        `json:"longitude"`
	Role      Role            `json:"role"`
}

// MarshalJSON encodes the candidate in the flattened broadcast shape.
func (c Candidate) MarshalJSON() ([]byte, error) {
	id, err := json.Marshal(c.ID)
	if err != nil {
		return nil, err
	}
	lat, lon := c.Position.Latitude, c.Position.Longitude

	return json.Marshal(candidateWire{
		ID:        id,
		Name:      c.Name,
		Latitude:  &lat,
		Longitude: &lon,
		Role:      c.Role,
	})
}

// UnmarshalJSON decodes the flattened broadcast shape.
//
// The id may be a JSON string or number. Latitude and longitude are required.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var w candidateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Latitude == nil || w.Longitude == nil {
		return fmt.Errorf("candidate position is incomplete")
	}

	id, err := decodeID(w.ID)
	if err != nil {
		return fmt.Errorf("candidate id: %w", err)
	}

	*c = Candidate{
		ID:       id,
		Name:     w.Name,
		Position: Position{Latitude: *w.Latitude, Longitude: *w.Longitude},
		Role:     w.Role,
	}

	return nil
}

// decodeID accepts a JSON string or number and returns it as a string.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("must be a string or number")
	}

	return n.String(), nil
}
