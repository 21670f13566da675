package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/apandit646/droploc"
	"gopkg.in/yaml.v3"
)

// Route is a recorded sequence of positions replayed at a fixed cadence.
//
// File format:
//
//	interval: 2s
//	loop: true
//	points:
//	  - {latitude: 12.9716, longitude: 77.5946}
//	  - {latitude: 12.9721, longitude: 77.5952}
type Route struct {
	Interval time.Duration      `yaml:"interval"`
	Loop     bool               `yaml:"loop"`
	Points   []droploc.Position `yaml:"points"`
}

const defaultRouteInterval = 2 * time.Second

// LoadRoute reads and validates a route file.
func LoadRoute(path string) (*Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route: %w", err)
	}

	return ParseRoute(data)
}

// ParseRoute decodes a route document. A missing interval defaults to two seconds.
func ParseRoute(data []byte) (*Route, error) {
	var r Route
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse route: %w", err)
	}

	if len(r.Points) == 0 {
		return nil, errors.New("route has no points")
	}
	if r.Interval == 0 {
		r.Interval = defaultRouteInterval
	}
	if r.Interval < 0 {
		return nil, fmt.Errorf("route interval must be positive, got %s", r.Interval)
	}
	for i, p := range r.Points {
		if !p.IsValid() {
			return nil, fmt.Errorf("route point %d is not a valid position: %s", i, p)
		}
	}

	return &r, nil
}

// Replay feeds every point to update, one per interval, until the route ends
// or ctx is cancelled. The first point is sent immediately.
func (r *Route) Replay(ctx context.Context, update func(droploc.Position) error) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		for _, p := range r.Points {
			if err := update(p); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		if !r.Loop {
			return nil
		}
	}
}
