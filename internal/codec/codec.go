// Package codec implements the wire formats exchanged with the dispatch backend.
//
// Outbound:
//
//	app/update-location      {"token": "...", "location": {"latitude": 1.0, "longitude": 2.0}}
//
// Inbound:
//
//	location/{cell}          {"response": [Candidate, ...]}
//	notification/{actorId}   RideRequestEvent, untagged
//	user/{actorId}/location-sub  {"response": "<cell>"}
//
// Decoders never panic on hostile input; every failure is returned as an error the
// caller wraps in a types.MalformedMessageError.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/apandit646/droploc/types"
)

var (
	errEmptyPayload    = errors.New("empty payload")
	errMissingResponse = errors.New(`missing "response" field`)
)

// LocationUpdate is the heartbeat body.
type LocationUpdate struct {
	Token    string         `json:"token"`
	Location types.Position `json:"location"`
}

// EncodeLocationUpdate renders the heartbeat body.
func EncodeLocationUpdate(token string, pos types.Position) ([]byte, error) {
	data, err := json.Marshal(LocationUpdate{Token: token, Location: pos})
	if err != nil {
		return nil, fmt.Errorf("encode location update: %w", err)
	}

	return data, nil
}

// DecodeLocationUpdate parses a heartbeat body. Used by test brokers and the
// backend side of the examples.
func DecodeLocationUpdate(payload []byte) (LocationUpdate, error) {
	var u LocationUpdate
	if err := decodeStrict(payload, &u); err != nil {
		return LocationUpdate{}, err
	}

	return u, nil
}

// DecodeCandidates parses a candidate snapshot. A null response is an empty snapshot.
func DecodeCandidates(payload []byte) ([]types.Candidate, error) {
	var env struct {
		Response *json.RawMessage `json:"response"`
	}
	if err := decodeStrict(payload, &env); err != nil {
		return nil, err
	}
	if env.Response == nil {
		return nil, errMissingResponse
	}

	var candidates []types.Candidate
	if err := json.Unmarshal(*env.Response, &candidates); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	if candidates == nil {
		candidates = []types.Candidate{}
	}

	return candidates, nil
}

// EncodeCandidates renders a candidate snapshot.
func EncodeCandidates(candidates []types.Candidate) ([]byte, error) {
	if candidates == nil {
		candidates = []types.Candidate{}
	}

	return json.Marshal(struct {
		Response []types.Candidate `json:"response"`
	}{Response: candidates})
}

// DecodeRideRequest parses a notification body.
func DecodeRideRequest(payload []byte) (types.RideRequestEvent, error) {
	var ev types.RideRequestEvent
	if err := decodeStrict(payload, &ev); err != nil {
		return types.RideRequestEvent{}, err
	}

	return ev, nil
}

// EncodeRideRequest renders a notification body.
func EncodeRideRequest(ev types.RideRequestEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeCellPush parses a server-pushed cell address.
func DecodeCellPush(payload []byte) (types.CellAddress, error) {
	var env struct {
		Response *string `json:"response"`
	}
	if err := decodeStrict(payload, &env); err != nil {
		return "", err
	}
	if env.Response == nil {
		return "", errMissingResponse
	}
	if *env.Response == "" {
		return "", errors.New("empty cell address")
	}

	return types.CellAddress(*env.Response), nil
}

// EncodeCellPush renders a server-pushed cell address.
func EncodeCellPush(cell types.CellAddress) ([]byte, error) {
	return json.Marshal(struct {
		Response string `json:"response"`
	}{Response: string(cell)})
}

func decodeStrict(payload []byte, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return errEmptyPayload
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	return nil
}
