// Package rideapi sends ride requests to the dispatch backend and tracks which
// providers have a request outstanding.
package rideapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/apandit646/droploc/types"
)

// DefaultRidePath is the ride-request endpoint.
const DefaultRidePath = "/api/v1/ride"

// RideRequest is the POST body.
type RideRequest struct {
	ServiceProviderID   string `json:"serviceProviderId"`
	DestinationLocation string `json:"destinationLocation"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Defaults to http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithRidePath overrides DefaultRidePath.
func WithRidePath(path string) Option {
	return func(cl *Client) {
		cl.path = path
	}
}

// Client posts ride requests. The response body is ignored beyond the status code.
type Client struct {
	baseURL string
	path    string
	http    *http.Client
}

// NewClient creates a client against baseURL, e.g. "http://10.0.2.2:8080".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    DefaultRidePath,
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RequestRide asks providerID to drive the caller to destination.
//
// Parameters:
//   - ctx: Request context
//   - token: Bearer token of the rider
//   - providerID: The chosen driver
//   - destination: Free-form drop-off address
//
// Returns:
//   - error: ErrNoDestination, *types.PreconditionError when token is empty, or
//     ErrRideRequestFailed wrapping the transport error or status code
func (c *Client) RequestRide(ctx context.Context, token, providerID, destination string) error {
	if strings.TrimSpace(destination) == "" {
		return types.ErrNoDestination
	}
	if token == "" {
		return &types.PreconditionError{Missing: []string{"token"}}
	}

	body, err := json.Marshal(RideRequest{ServiceProviderID: providerID, DestinationLocation: destination})
	if err != nil {
		return fmt.Errorf("%w: encode: %w", types.ErrRideRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", types.ErrRideRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrRideRequestFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", types.ErrRideRequestFailed, resp.StatusCode)
	}

	return nil
}
