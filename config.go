package droploc

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apandit646/droploc/internal/codec"
)

// CellSource selects where cell addresses come from.
type CellSource string

const (
	// CellSourceLookup asks the backend lookup endpoint, through the given Resolver or
	// one built from API.BaseURL.
	CellSourceLookup CellSource = "lookup"

	// CellSourceGeohash computes geohash cells locally.
	CellSourceGeohash CellSource = "geohash"

	// CellSourceS2 computes S2 cell tokens locally.
	CellSourceS2 CellSource = "s2"

	// CellSourcePush takes cells pushed by the server on the per-actor cell topic.
	CellSourcePush CellSource = "push"
)

// Valid reports whether s names a known source.
func (s CellSource) Valid() bool {
	switch s {
	case CellSourceLookup, CellSourceGeohash, CellSourceS2, CellSourcePush:
		return true
	default:
		return false
	}
}

// TopicConfig names the transport topics. Defaults match the reference backend.
type TopicConfig struct {
	// UpdateLocation receives heartbeats.
	UpdateLocation string `yaml:"updateLocation"`

	// LocationPrefix + cell is the candidate broadcast topic.
	LocationPrefix string `yaml:"locationPrefix"`

	// NotificationPrefix + actorId carries ride requests.
	NotificationPrefix string `yaml:"notificationPrefix"`

	// CellPushPrefix + actorId + CellPushSuffix carries server-assigned cells.
	CellPushPrefix string `yaml:"cellPushPrefix"`
	CellPushSuffix string `yaml:"cellPushSuffix"`
}

func (t TopicConfig) topics() codec.Topics {
	return codec.Topics{
		UpdateLocation:     t.UpdateLocation,
		LocationPrefix:     t.LocationPrefix,
		NotificationPrefix: t.NotificationPrefix,
		CellPushPrefix:     t.CellPushPrefix,
		CellPushSuffix:     t.CellPushSuffix,
	}
}

// APIConfig locates the backend's REST endpoints.
type APIConfig struct {
	// BaseURL is the backend root, e.g. "http://10.0.2.2:8080". Ride requests are
	// disabled when empty.
	BaseURL string `yaml:"baseUrl"`

	// LookupPath is the cell lookup endpoint. Default: /api/v1/util
	LookupPath string `yaml:"lookupPath"`

	// RidePath is the ride request endpoint. Default: /api/v1/ride
	RidePath string `yaml:"ridePath"`
}

// Config is the configuration for the Engine.
//
// All duration fields accept standard Go duration strings like "3s", "500ms".
type Config struct {
	// HeartbeatInterval is the location publish cadence of an active actor.
	// Default: 3 seconds
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`

	// PassiveHeartbeatInterval is the cadence used when Passive is set.
	// Default: 30 seconds
	PassiveHeartbeatInterval time.Duration `yaml:"passiveHeartbeatInterval"`

	// Passive marks an actor that mostly consumes broadcasts.
	Passive bool `yaml:"passive"`

	// DisplayWindow is how long a ride request stays displayed before it expires.
	// Default: 7 seconds
	DisplayWindow time.Duration `yaml:"displayWindow"`

	// PromotionStagger separates tearing one display down from showing the next.
	// Zero applies the default; a negative value promotes immediately.
	// Default: 500 milliseconds
	PromotionStagger time.Duration `yaml:"promotionStagger"`

	// OperationTimeout bounds connect, subscribe and publish calls.
	// Default: 10 seconds
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// LookupTimeout bounds one cell lookup.
	// Default: 5 seconds
	LookupTimeout time.Duration `yaml:"lookupTimeout"`

	// RideRequestWindow is how long a provider stays "in progress" after a request.
	// Default: 30 seconds
	RideRequestWindow time.Duration `yaml:"rideRequestWindow"`

	// AverageSpeedKmh converts candidate distances into ETAs. Zero disables ETAs.
	// Default: 30
	AverageSpeedKmh float64 `yaml:"averageSpeedKmh"`

	// CellSource selects the cell address source.
	// Default: lookup
	CellSource CellSource `yaml:"cellSource"`

	// GeohashPrecision is the geohash length for CellSourceGeohash (1-12).
	// Default: 6 (about 1.2km x 0.6km)
	GeohashPrecision int `yaml:"geohashPrecision"`

	// S2Level is the S2 cell level for CellSourceS2 (0-30).
	// Default: 13 (about 1km²)
	S2Level int `yaml:"s2Level"`

	// CellCacheSize bounds the lookup cache, in quantized positions. Negative disables it.
	// Default: 256
	CellCacheSize int `yaml:"cellCacheSize"`

	// CellCachePrecision is the number of decimals positions are rounded to before
	// caching (0-8). Samples within one rounded square reuse the first sample's
	// cell, even across a cell boundary.
	// Default: 4 (about 11m)
	CellCachePrecision int `yaml:"cellCachePrecision"`

	// Topics names the transport topics.
	Topics TopicConfig `yaml:"topics"`

	// API locates the REST endpoints.
	API APIConfig `yaml:"api"`
}

// DefaultConfig returns a Config with the reference app's timings.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	topics := codec.DefaultTopics()

	return Config{
		HeartbeatInterval:        3 * time.Second,
		PassiveHeartbeatInterval: 30 * time.Second,
		DisplayWindow:            7 * time.Second,
		PromotionStagger:         500 * time.Millisecond,
		OperationTimeout:         10 * time.Second,
		LookupTimeout:            5 * time.Second,
		RideRequestWindow:        30 * time.Second,
		AverageSpeedKmh:          30,
		CellSource:               CellSourceLookup,
		GeohashPrecision:         6,
		S2Level:                  13,
		CellCacheSize:            256,
		CellCachePrecision:       4,
		Topics: TopicConfig{
			UpdateLocation:     topics.UpdateLocation,
			LocationPrefix:     topics.LocationPrefix,
			NotificationPrefix: topics.NotificationPrefix,
			CellPushPrefix:     topics.CellPushPrefix,
			CellPushSuffix:     topics.CellPushSuffix,
		},
		API: APIConfig{
			LookupPath: "/api/v1/util",
			RidePath:   "/api/v1/ride",
		},
	}
}

// SetDefaults fills in missing configuration values with the defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	setDuration := func(v *time.Duration, d time.Duration) {
		if *v == 0 {
			*v = d
		}
	}
	setString := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}

	setDuration(&cfg.HeartbeatInterval, defaults.HeartbeatInterval)
	setDuration(&cfg.PassiveHeartbeatInterval, defaults.PassiveHeartbeatInterval)
	setDuration(&cfg.DisplayWindow, defaults.DisplayWindow)
	setDuration(&cfg.PromotionStagger, defaults.PromotionStagger)
	setDuration(&cfg.OperationTimeout, defaults.OperationTimeout)
	setDuration(&cfg.LookupTimeout, defaults.LookupTimeout)
	setDuration(&cfg.RideRequestWindow, defaults.RideRequestWindow)

	if cfg.AverageSpeedKmh == 0 {
		cfg.AverageSpeedKmh = defaults.AverageSpeedKmh
	}
	if cfg.CellSource == "" {
		cfg.CellSource = defaults.CellSource
	}
	if cfg.GeohashPrecision == 0 {
		cfg.GeohashPrecision = defaults.GeohashPrecision
	}
	if cfg.S2Level == 0 {
		cfg.S2Level = defaults.S2Level
	}
	if cfg.CellCacheSize == 0 {
		cfg.CellCacheSize = defaults.CellCacheSize
	}
	if cfg.CellCachePrecision == 0 {
		cfg.CellCachePrecision = defaults.CellCachePrecision
	}

	setString(&cfg.Topics.UpdateLocation, defaults.Topics.UpdateLocation)
	setString(&cfg.Topics.LocationPrefix, defaults.Topics.LocationPrefix)
	setString(&cfg.Topics.NotificationPrefix, defaults.Topics.NotificationPrefix)
	setString(&cfg.Topics.CellPushPrefix, defaults.Topics.CellPushPrefix)
	setString(&cfg.Topics.CellPushSuffix, defaults.Topics.CellPushSuffix)
	setString(&cfg.API.LookupPath, defaults.API.LookupPath)
	setString(&cfg.API.RidePath, defaults.API.RidePath)
}

// Validate checks configuration constraints.
//
// Hard Validation Rules:
//   - Every interval, window and timeout is > 0
//   - PromotionStagger < DisplayWindow
//   - CellSource is lookup, geohash, s2 or push
//   - GeohashPrecision in 1..12, S2Level in 0..30, CellCachePrecision in 0..8
//   - AverageSpeedKmh >= 0
//   - Topic names are set
//
// Returns:
//   - error: Wrapped ErrInvalidConfig with the first violation, nil if valid
func (cfg *Config) Validate() error {
	positive := []struct {
		name string
		v    time.Duration
	}{
		{"HeartbeatInterval", cfg.HeartbeatInterval},
		{"PassiveHeartbeatInterval", cfg.PassiveHeartbeatInterval},
		{"DisplayWindow", cfg.DisplayWindow},
		{"OperationTimeout", cfg.OperationTimeout},
		{"LookupTimeout", cfg.LookupTimeout},
		{"RideRequestWindow", cfg.RideRequestWindow},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %v", ErrInvalidConfig, p.name, p.v)
		}
	}

	if cfg.PromotionStagger >= cfg.DisplayWindow {
		return fmt.Errorf("%w: PromotionStagger (%v) must be shorter than DisplayWindow (%v)",
			ErrInvalidConfig, cfg.PromotionStagger, cfg.DisplayWindow)
	}
	if !cfg.CellSource.Valid() {
		return fmt.Errorf("%w: unknown CellSource %q", ErrInvalidConfig, cfg.CellSource)
	}
	if cfg.GeohashPrecision < 1 || cfg.GeohashPrecision > 12 {
		return fmt.Errorf("%w: GeohashPrecision must be 1-12, got %d", ErrInvalidConfig, cfg.GeohashPrecision)
	}
	if cfg.S2Level < 0 || cfg.S2Level > 30 {
		return fmt.Errorf("%w: S2Level must be 0-30, got %d", ErrInvalidConfig, cfg.S2Level)
	}
	if cfg.CellCachePrecision < 0 || cfg.CellCachePrecision > 8 {
		return fmt.Errorf("%w: CellCachePrecision must be 0-8, got %d", ErrInvalidConfig, cfg.CellCachePrecision)
	}
	if cfg.AverageSpeedKmh < 0 {
		return fmt.Errorf("%w: AverageSpeedKmh must be >= 0, got %v", ErrInvalidConfig, cfg.AverageSpeedKmh)
	}
	if cfg.Topics.UpdateLocation == "" || cfg.Topics.LocationPrefix == "" || cfg.Topics.NotificationPrefix == "" {
		return fmt.Errorf("%w: topic names must be set", ErrInvalidConfig)
	}
	if cfg.CellSource == CellSourcePush && cfg.Topics.CellPushPrefix == "" {
		return fmt.Errorf("%w: CellSource push requires Topics.CellPushPrefix", ErrInvalidConfig)
	}

	return nil
}

// ValidateWithWarnings logs warnings for legal but unusual values.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.HeartbeatInterval < time.Second {
		logger.Warn("HeartbeatInterval is very short, expect heavy publish traffic",
			"heartbeatInterval", cfg.HeartbeatInterval,
			"recommended", "3s",
		)
	}
	if cfg.DisplayWindow < 3*time.Second {
		logger.Warn("DisplayWindow leaves little time to react to a request",
			"displayWindow", cfg.DisplayWindow,
			"recommended", "7s",
		)
	}
	if cfg.API.BaseURL == "" {
		logger.Warn("API.BaseURL is empty, ride requests are disabled")
	}
}

// TestConfig returns a configuration with fast timings for tests.
//
// Returns:
//   - Config: Configuration with fast timings
//
// Example:
//
//	cfg := droploc.TestConfig()
//	cfg.CellSource = droploc.CellSourceGeohash
//	eng, err := droploc.NewEngine(&cfg, broker, nil, creds)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.HeartbeatInterval = 50 * time.Millisecond
	cfg.PassiveHeartbeatInterval = 200 * time.Millisecond
	cfg.DisplayWindow = 300 * time.Millisecond
	cfg.PromotionStagger = 20 * time.Millisecond
	cfg.OperationTimeout = time.Second
	cfg.LookupTimeout = 500 * time.Millisecond
	cfg.RideRequestWindow = 500 * time.Millisecond

	return cfg
}

// ParseConfig decodes YAML, applies defaults and validates.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config file %s not found: %w", path, err)
		}

		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	return ParseConfig(data)
}

// heartbeatInterval returns the cadence in effect.
func (cfg *Config) heartbeatInterval() time.Duration {
	if cfg.Passive {
		return cfg.PassiveHeartbeatInterval
	}

	return cfg.HeartbeatInterval
}
