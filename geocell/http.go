package geocell

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/apandit646/droploc/types"
)

// DefaultLookupPath is the backend endpoint returning the cell address of a coordinate.
const DefaultLookupPath = "/api/v1/util"

// maxLookupBody caps the response size; a cell address is a short token.
const maxLookupBody = 4 << 10

// HTTPResolver resolves cell addresses with the dispatch backend's lookup endpoint:
//
//	GET {BaseURL}/api/v1/util?lat={lat}&lon={lon}
//	Authorization: Bearer {token}
//
// The response body is the bare address, optionally JSON-quoted.
type HTTPResolver struct {
	baseURL string
	path    string
	client  *http.Client
	creds   types.CredentialStore
}

// HTTPOption configures an HTTPResolver.
type HTTPOption func(*HTTPResolver)

// WithHTTPClient sets the client used for lookups. Defaults to http.DefaultClient.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPResolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithLookupPath overrides DefaultLookupPath.
func WithLookupPath(path string) HTTPOption {
	return func(r *HTTPResolver) {
		r.path = path
	}
}

// NewHTTPResolver creates a resolver against baseURL.
//
// Parameters:
//   - baseURL: Backend root, e.g. "http://10.0.2.2:8080"
//   - creds: Source of the bearer token; lookups without a token fail as transient
//   - opts: Optional client and path overrides
//
// Returns:
//   - *HTTPResolver: Ready to use resolver
func NewHTTPResolver(baseURL string, creds types.CredentialStore, opts ...HTTPOption) *HTTPResolver {
	r := &HTTPResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    DefaultLookupPath,
		client:  http.DefaultClient,
		creds:   creds,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve implements Resolver.
func (r *HTTPResolver) Resolve(ctx context.Context, pos types.Position) (types.CellAddress, error) {
	token, ok := "", false
	if r.creds != nil {
		token, ok = r.creds.Token()
	}
	if !ok || token == "" {
		return "", fmt.Errorf("%w: %w", types.ErrLookupFailed, &types.PreconditionError{Missing: []string{"token"}})
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(pos.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(pos.Longitude, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+r.path+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", types.ErrLookupFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/plain, application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLookupBody))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", types.ErrLookupFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", types.ErrLookupFailed, resp.StatusCode)
	}

	cell, err := parseCellBody(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrLookupFailed, err)
	}

	return cell, nil
}

func parseCellBody(body []byte) (types.CellAddress, error) {
	s := strings.TrimSpace(string(body))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal([]byte(s), &s); err != nil {
			return "", fmt.Errorf("decode quoted address: %w", err)
		}
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return "", fmt.Errorf("empty cell address")
	}

	return types.CellAddress(s), nil
}
