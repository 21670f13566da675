package main

import (
	"context"
	"errors"
	rand "math/rand/v2"
	"time"

	"github.com/apandit646/droploc"
)

// backoff yields decorrelated-jitter delays between base and limit.
//
//	next = min(limit, base + rand[0, prev*factor - base))
type backoff struct {
	base   time.Duration
	limit  time.Duration
	factor float64
	rng    *rand.Rand
	prev   time.Duration
}

func newBackoff(base, limit time.Duration, seed uint64) *backoff {
	b := &backoff{base: base, limit: limit, factor: 3}
	if seed != 0 {
		b.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // retry jitter
	}

	return b
}

// Next returns the delay before the next attempt.
func (b *backoff) Next() time.Duration {
	if b.prev <= 0 {
		b.prev = min(b.base, b.limit)
		return b.prev
	}

	span := time.Duration(float64(b.prev)*b.factor) - b.base
	if span <= 0 {
		span = b.base
	}

	var jitter int64
	if b.rng != nil {
		jitter = b.rng.Int64N(int64(span))
	} else {
		jitter = rand.Int64N(int64(span)) //nolint:gosec // retry jitter
	}

	b.prev = min(b.base+time.Duration(jitter), b.limit)

	return b.prev
}

// Reset starts the next series from base.
func (b *backoff) Reset() {
	b.prev = 0
}

// sessionDialer is the part of the engine the reconnector needs.
type sessionDialer interface {
	Connect(ctx context.Context) error
	SubscribeConnection() (<-chan droploc.ConnectionState, func())
}

// reconnector reopens the session after it is lost. The engine never reconnects on
// its own; an explicit Disconnect is left alone.
type reconnector struct {
	eng     sessionDialer
	backoff *backoff
	timeout time.Duration
	logger  droploc.Logger
}

func (r *reconnector) Run(ctx context.Context) {
	states, unsubscribe := r.eng.SubscribeConnection()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			if state != droploc.ConnectionLost {
				continue
			}
			r.redial(ctx)
		}
	}
}

func (r *reconnector) redial(ctx context.Context) {
	r.backoff.Reset()

	for attempt := 1; ; attempt++ {
		delay := r.backoff.Next()
		r.logger.Warn("session lost, reconnecting", "attempt", attempt, "delay", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		dialCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.eng.Connect(dialCtx)
		cancel()
		switch {
		case err == nil:
			r.logger.Info("session restored", "attempts", attempt)
			return
		case errors.Is(err, droploc.ErrDuplicateSession), errors.Is(err, droploc.ErrEngineStopped), ctx.Err() != nil:
			return
		}
		r.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
	}
}
