// Package governor enforces the resource policy around provider operations:
// bounded concurrency, upstream rate limiting, a hard per-attempt deadline
// and a uniform linear-backoff retry policy.
package governor

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"radiobot/internal/logger"
	"radiobot/internal/media"
)

// Governor wraps provider calls. One instance is shared by every provider so
// the concurrency bound is global.
type Governor struct {
	log        *logger.Logger
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
	sem        chan struct{}
	limiter    *rate.Limiter
}

// Options tunes a Governor.
type Options struct {
	MaxRetries    int
	BaseDelay     time.Duration
	Timeout       time.Duration
	MaxConcurrent int
	RatePerMinute int
}

// New builds a Governor. Zero option fields fall back to safe minimums.
func New(opts Options, log *logger.Logger) *Governor {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}

	limit := rate.Inf
	if opts.RatePerMinute > 0 {
		limit = rate.Limit(float64(opts.RatePerMinute) / 60.0)
	}

	return &Governor{
		log:        log,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		timeout:    opts.Timeout,
		sem:        make(chan struct{}, opts.MaxConcurrent),
		limiter:    rate.NewLimiter(limit, opts.MaxConcurrent),
	}
}

// Run executes op under the governor's policy: semaphore admission, rate
// limiting, a hard deadline per attempt, and up to MaxRetries attempts with
// linear backoff. Blocked failures short-circuit; retrying a blocked
// upstream only worsens the blocking.
func Run[T any](ctx context.Context, g *Governor, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	select {
	case g.sem <- struct{}{}:
		defer func() { <-g.sem }()
	case <-ctx.Done():
		return zero, media.Failf(media.FailTimeout, "", "%s: cancelled waiting for a slot", name)
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, media.Failf(media.FailTimeout, "", "%s: cancelled waiting for rate limit", name)
		}

		result, err := runOnce(ctx, g, op)
		if err == nil {
			if attempt > 1 {
				g.log.Debug("governor: %s succeeded on attempt %d", name, attempt)
			}
			return result, nil
		}
		lastErr = err

		kind := media.KindOf(err)
		if kind == media.FailBlocked {
			g.log.Warn("governor: %s blocked, not retrying", name)
			return zero, err
		}
		if !media.Retryable(err) {
			return zero, err
		}

		g.log.Debug("governor: %s attempt %d/%d failed: %v", name, attempt, g.maxRetries, err)

		if attempt < g.maxRetries {
			if err := sleep(ctx, g.baseDelay*time.Duration(attempt)); err != nil {
				return zero, media.Failf(media.FailTimeout, "", "%s: cancelled during backoff", name)
			}
		}
	}

	return zero, media.WrapFailure(media.KindOf(lastErr), "", lastErr)
}

// runOnce runs op once under the hard deadline. On expiry the in-flight
// operation is abandoned, its eventual result discarded.
func runOnce[T any](ctx context.Context, g *Governor, op func(context.Context) (T, error)) (T, error) {
	var zero T

	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		result T
		err    error
	}
	done := make(chan outcome, 1) // buffered so an abandoned attempt can exit

	go func() {
		result, err := op(attemptCtx)
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return zero, media.Failf(media.FailTimeout, "", "cancelled")
		}
		return zero, media.Failf(media.FailTimeout, "", "deadline exceeded after %s", g.timeout)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
