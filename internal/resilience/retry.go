package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy describes how patiently a dataset download is retried.
type Policy struct {
	// Attempts counts every try including the first. Default: 3.
	Attempts int
	// Base is the wait before the first retry. Default: 500ms.
	Base time.Duration
	// Cap bounds every wait. Default: 30s.
	Cap time.Duration
	// Factor grows the wait after each retry. Default: 2.
	Factor float64
	// Jitter spreads each wait by up to ±Jitter of itself. Default: 0.25.
	Jitter float64

	// Retryable replaces IsTransient when set.
	Retryable func(error) bool
	// OnRetry runs before each wait with the 1-based retry number.
	OnRetry func(retry int, err error)
}

// DefaultPolicy returns the policy used for dataset downloads.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Base:     500 * time.Millisecond,
		Cap:      30 * time.Second,
		Factor:   2,
		Jitter:   0.25,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.Base <= 0 {
		p.Base = def.Base
	}
	if p.Cap <= 0 {
		p.Cap = def.Cap
	}
	if p.Factor <= 0 {
		p.Factor = def.Factor
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Delay returns the jittered wait after failed attempt n (0-based).
func (p Policy) Delay(n int) time.Duration {
	d := math.Min(float64(p.Base)*math.Pow(p.Factor, float64(n)), float64(p.Cap))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(math.Max(d, 0))
}

// Retry calls fn until it succeeds, fails with a non-retryable error, runs out
// of attempts, or ctx ends. The last error is returned unchanged.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	for n := 0; ; n++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if n+1 >= p.Attempts || ctx.Err() != nil || !p.Retryable(err) {
			return zero, err
		}

		if p.OnRetry != nil {
			p.OnRetry(n+1, err)
		}
		if !sleep(ctx, p.Delay(n)) {
			return zero, err
		}
	}
}

// Do is Retry for operations without a result.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// LogRetries returns an OnRetry callback that logs each retry of a download.
func LogRetries(scheme, location string) func(int, error) {
	return func(retry int, err error) {
		zap.L().Warn("fetcher: retrying download",
			zap.String("scheme", scheme),
			zap.String("location", location),
			zap.Int("retry", retry),
			zap.Error(err),
		)
	}
}
