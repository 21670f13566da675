package droploc

import (
	"net/http"
	"time"

	"github.com/apandit646/droploc/rideapi"
)

// Option configures an Engine with optional dependencies.
type Option func(*engineOptions)

// engineOptions holds optional Engine configuration.
type engineOptions struct {
	hooks      *Hooks
	metrics    MetricsCollector
	logger     Logger
	rideClient *rideapi.Client
	httpClient *http.Client
	now        func() time.Time
}

// WithHooks sets event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewEngine
//
// Example:
//
//	hooks := &droploc.Hooks{
//	    OnCandidates: func(ctx context.Context, cell droploc.CellAddress, ranked []droploc.RankedCandidate) error {
//	        return ui.ShowMarkers(ranked)
//	    },
//	}
//	eng, err := droploc.NewEngine(&cfg, transport, resolver, creds, droploc.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *engineOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewEngine
//
// Example:
//
//	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer, "droploc")
//	eng, err := droploc.NewEngine(&cfg, transport, resolver, creds, droploc.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *engineOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewEngine
func WithLogger(logger Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithRideClient overrides the ride request client built from Config.API.
func WithRideClient(client *rideapi.Client) Option {
	return func(o *engineOptions) {
		o.rideClient = client
	}
}

// WithHTTPClient sets the HTTP client used for the REST endpoints configured in
// Config.API.
func WithHTTPClient(client *http.Client) Option {
	return func(o *engineOptions) {
		o.httpClient = client
	}
}

// WithClock replaces time.Now for display deadlines and ride request windows.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		o.now = now
	}
}
