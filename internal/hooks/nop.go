// Package hooks provides no-op hook defaults and the ordered hook runner.
package hooks

import (
	"context"
	"time"

	"github.com/apandit646/droploc/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.ConnectionState, types.ConnectionState) error = (*NopHooks)(nil).OnConnectionChanged
	_ func(context.Context, types.CellAddress, types.CellAddress) error         = (*NopHooks)(nil).OnCellChanged
	_ func(context.Context, types.CellAddress, []types.RankedCandidate) error   = (*NopHooks)(nil).OnCandidates
	_ func(context.Context, types.RideRequestEvent, time.Time) error            = (*NopHooks)(nil).OnDisplay
	_ func(context.Context, types.RideRequestEvent, types.Resolution) error     = (*NopHooks)(nil).OnDismiss
	_ func(context.Context, types.RideRequestEvent) error                       = (*NopHooks)(nil).OnAccept
	_ func(context.Context, error) error                                        = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnConnectionChanged: h.OnConnectionChanged,
		OnCellChanged:       h.OnCellChanged,
		OnCandidates:        h.OnCandidates,
		OnDisplay:           h.OnDisplay,
		OnDismiss:           h.OnDismiss,
		OnAccept:            h.OnAccept,
		OnError:             h.OnError,
	}
}

// Fill returns a copy of h with every nil callback replaced by its no-op.
// A nil h yields NewNop().
func Fill(h *types.Hooks) types.Hooks {
	out := NewNop()
	if h == nil {
		return out
	}
	if h.OnConnectionChanged != nil {
		out.OnConnectionChanged = h.OnConnectionChanged
	}
	if h.OnCellChanged != nil {
		out.OnCellChanged = h.OnCellChanged
	}
	if h.OnCandidates != nil {
		out.OnCandidates = h.OnCandidates
	}
	if h.OnDisplay != nil {
		out.OnDisplay = h.OnDisplay
	}
	if h.OnDismiss != nil {
		out.OnDismiss = h.OnDismiss
	}
	if h.OnAccept != nil {
		out.OnAccept = h.OnAccept
	}
	if h.OnError != nil {
		out.OnError = h.OnError
	}

	return out
}

// OnConnectionChanged is a no-op implementation.
func (h *NopHooks) OnConnectionChanged(_ context.Context, _, _ types.ConnectionState) error {
	return nil
}

// OnCellChanged is a no-op implementation.
func (h *NopHooks) OnCellChanged(_ context.Context, _, _ types.CellAddress) error {
	return nil
}

// OnCandidates is a no-op implementation.
func (h *NopHooks) OnCandidates(_ context.Context, _ types.CellAddress, _ []types.RankedCandidate) error {
	return nil
}

// OnDisplay is a no-op implementation.
func (h *NopHooks) OnDisplay(_ context.Context, _ types.RideRequestEvent, _ time.Time) error {
	return nil
}

// OnDismiss is a no-op implementation.
func (h *NopHooks) OnDismiss(_ context.Context, _ types.RideRequestEvent, _ types.Resolution) error {
	return nil
}

// OnAccept is a no-op implementation.
func (h *NopHooks) OnAccept(_ context.Context, _ types.RideRequestEvent) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}
