package governor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"radiobot/internal/logger"
	"radiobot/internal/media"
)

func newTestGovernor(retries int) *Governor {
	return New(Options{
		MaxRetries:    retries,
		BaseDelay:     time.Millisecond,
		Timeout:       time.Second,
		MaxConcurrent: 3,
	}, logger.New(false))
}

func TestRetryBound(t *testing.T) {
	g := newTestGovernor(3)
	var calls atomic.Int32

	_, err := Run(context.Background(), g, "always-timeout", func(context.Context) (int, error) {
		calls.Add(1)
		return 0, media.Failf(media.FailTimeout, media.SourceYouTube, "simulated")
	})

	if err == nil {
		t.Fatal("expected a terminal failure")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("made %d attempts, want exactly 3", got)
	}
	if media.KindOf(err) != media.FailTimeout {
		t.Errorf("terminal failure kind = %v, want timeout", media.KindOf(err))
	}
}

func TestBlockedShortCircuit(t *testing.T) {
	g := newTestGovernor(3)
	var calls atomic.Int32

	_, err := Run(context.Background(), g, "blocked", func(context.Context) (int, error) {
		calls.Add(1)
		return 0, media.Failf(media.FailBlocked, media.SourceYouTube, "429")
	})

	if got := calls.Load(); got != 1 {
		t.Errorf("blocked operation was attempted %d times, want 1", got)
	}
	if media.KindOf(err) != media.FailBlocked {
		t.Errorf("kind = %v, want blocked", media.KindOf(err))
	}
}

func TestNotFoundIsNotRetried(t *testing.T) {
	g := newTestGovernor(3)
	var calls atomic.Int32

	_, err := Run(context.Background(), g, "empty", func(context.Context) (int, error) {
		calls.Add(1)
		return 0, media.Failf(media.FailNotFound, media.SourceYouTube, "no candidates")
	})

	if got := calls.Load(); got != 1 {
		t.Errorf("not-found was attempted %d times, want 1", got)
	}
	if media.KindOf(err) != media.FailNotFound {
		t.Errorf("kind = %v, want not found", media.KindOf(err))
	}
}

func TestSuccessAfterRetry(t *testing.T) {
	g := newTestGovernor(3)
	var calls atomic.Int32

	got, err := Run(context.Background(), g, "flaky", func(context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", media.Failf(media.FailTimeout, media.SourceYouTube, "transient")
		}
		return "payload", nil
	})

	if err != nil {
		t.Fatalf("expected success on the third attempt: %v", err)
	}
	if got != "payload" {
		t.Errorf("result = %q", got)
	}
}

func TestHardDeadlineAbandonsAttempt(t *testing.T) {
	g := New(Options{
		MaxRetries:    1,
		Timeout:       20 * time.Millisecond,
		MaxConcurrent: 1,
	}, logger.New(false))

	start := time.Now()
	_, err := Run(context.Background(), g, "slow", func(ctx context.Context) (int, error) {
		select {
		case <-time.After(5 * time.Second):
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})
	elapsed := time.Since(start)

	if media.KindOf(err) != media.FailTimeout {
		t.Fatalf("kind = %v, want timeout", media.KindOf(err))
	}
	if elapsed > time.Second {
		t.Errorf("attempt was awaited past the deadline (%s)", elapsed)
	}
}

func TestConcurrencyBound(t *testing.T) {
	g := New(Options{
		MaxRetries:    1,
		Timeout:       time.Second,
		MaxConcurrent: 2,
	}, logger.New(false))

	var inFlight, peak atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = Run(context.Background(), g, "work", func(context.Context) (int, error) {
				cur := inFlight.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				inFlight.Add(-1)
				return 0, nil
			})
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}

	if peak.Load() > 2 {
		t.Errorf("observed %d concurrent operations, bound is 2", peak.Load())
	}
}
