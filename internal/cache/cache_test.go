package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"radiobot/internal/logger"
	"radiobot/internal/media"
)

func testPolicy() Policy {
	return Policy{TTL: 7 * 24 * time.Hour, MaxEntries: 100}
}

func newTestCache(t *testing.T, policy Policy) *Cache[media.Outcome] {
	t.Helper()
	return New[media.Outcome](policy, nil, logger.New(false))
}

func TestRoundTrip(t *testing.T) {
	c := newTestCache(t, testPolicy())
	out := media.Outcome{
		FilePath: "/tmp/x.mp3",
		Meta:     media.NewTrackMetadata("One More Time", "Daft Punk", 320, media.SourceYouTube),
	}

	c.Put("youtube", "daft punk", out)

	got, ok := c.Get("youtube", "daft punk")
	if !ok {
		t.Fatal("expected a hit right after Put")
	}
	if got.Meta != out.Meta || got.FilePath != out.FilePath {
		t.Errorf("round trip mismatch: got %+v want %+v", got, out)
	}
}

func TestKeyNormalizationIsCallersJob(t *testing.T) {
	// The cache hashes exactly what it is given; callers normalize first.
	c := newTestCache(t, testPolicy())
	out := media.Outcome{Meta: media.NewTrackMetadata("t", "a", 100, media.SourceYouTube)}

	c.Put("youtube", media.NormalizeQuery(" Daft Punk "), out)
	if _, ok := c.Get("youtube", media.NormalizeQuery("daft punk")); !ok {
		t.Error("normalized queries should resolve to the same entry")
	}
}

func TestExpiry(t *testing.T) {
	c := newTestCache(t, Policy{TTL: time.Hour, MaxEntries: 10})
	c.Put("youtube", "old", media.Outcome{})

	// Age the entry past the freshness window.
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, ok := c.Get("youtube", "old"); ok {
		t.Fatal("expired entry must not be returned")
	}
	if c.Len() != 0 {
		t.Error("expired entry should be purged on read")
	}
	// Idempotent: a second read is also absent, without error.
	if _, ok := c.Get("youtube", "old"); ok {
		t.Fatal("second read of expired entry must be absent")
	}
}

func TestEvictionPrefersLowScoreThenOldest(t *testing.T) {
	c := newTestCache(t, Policy{TTL: time.Hour, MaxEntries: 2})

	c.Put("youtube", "keeper", media.Outcome{})
	c.Put("youtube", "loser", media.Outcome{})
	c.MarkResult("youtube", "loser", false) // score drops below keeper's

	c.Put("youtube", "newcomer", media.Outcome{}) // forces eviction

	if _, ok := c.Get("youtube", "loser"); ok {
		t.Error("lowest-score entry should have been evicted")
	}
	if _, ok := c.Get("youtube", "keeper"); !ok {
		t.Error("high-score entry should survive eviction")
	}
	if _, ok := c.Get("youtube", "newcomer"); !ok {
		t.Error("new entry should survive its own insertion")
	}
}

func TestScoreGate(t *testing.T) {
	c := newTestCache(t, Policy{TTL: time.Hour, MaxEntries: 10, MinScore: 0.6})
	c.Put("youtube", "flaky", media.Outcome{})

	// Drive the score under the threshold: 1.0 -> 0.5 -> 0.33...
	c.MarkResult("youtube", "flaky", false)
	c.MarkResult("youtube", "flaky", false)

	if _, ok := c.Get("youtube", "flaky"); ok {
		t.Error("entry below the score threshold must be treated as absent")
	}

	// A fresh success via Put rehabilitates it.
	c.Put("youtube", "flaky", media.Outcome{})
	c.MarkResult("youtube", "flaky", true)
	c.MarkResult("youtube", "flaky", true)
	if _, ok := c.Get("youtube", "flaky"); !ok {
		t.Error("rehabilitated entry should be usable again")
	}
}

func TestFileStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	log := logger.New(false)

	c := New[media.Outcome](testPolicy(), store, log)
	c.Put("youtube", "persisted", media.Outcome{FilePath: "/tmp/p.mp3"})
	c.Close() // wait for the background write

	// A second cache over the same store sees the entry.
	c2 := New[media.Outcome](testPolicy(), store, log)
	got, ok := c2.Get("youtube", "persisted")
	if !ok {
		t.Fatal("reloaded cache lost the entry")
	}
	if got.FilePath != "/tmp/p.mp3" {
		t.Errorf("reloaded payload mismatch: %+v", got)
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context) (map[string][]byte, error) {
	return nil, errors.New("disk on fire")
}
func (failingStore) Save(context.Context, map[string][]byte) error {
	return errors.New("disk on fire")
}

func TestStorageErrorsDegradeToMiss(t *testing.T) {
	c := New[media.Outcome](testPolicy(), failingStore{}, logger.New(false))
	defer c.Close()

	// Neither Put nor Get may fail the calling path.
	c.Put("youtube", "q", media.Outcome{})
	if _, ok := c.Get("youtube", "q"); !ok {
		t.Error("in-memory entry should still serve despite store failures")
	}
	if _, ok := c.Get("youtube", "other"); ok {
		t.Error("unknown key should be a plain miss")
	}
}

type countingStore struct {
	saves atomic.Int32
}

func (countingStore) Load(context.Context) (map[string][]byte, error) { return nil, nil }
func (s *countingStore) Save(context.Context, map[string][]byte) error {
	s.saves.Add(1)
	return nil
}

func TestReadsNeverTouchTheStore(t *testing.T) {
	store := &countingStore{}
	c := New[media.Outcome](Policy{TTL: time.Hour, MaxEntries: 10}, store, logger.New(false))

	c.Put("youtube", "q", media.Outcome{})
	c.Put("youtube", "stale", media.Outcome{})
	c.Close()
	baseline := store.saves.Load()

	for i := 0; i < 5; i++ {
		c.Get("youtube", "q")
	}
	// Purging an expired entry on read is memory-only too.
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	c.Get("youtube", "stale")

	c.Close()
	if got := store.saves.Load(); got != baseline {
		t.Errorf("reads wrote to the store: %d saves, want %d", got, baseline)
	}
}

type stalledStore struct {
	release chan struct{}
}

func (stalledStore) Load(context.Context) (map[string][]byte, error) { return nil, nil }
func (s stalledStore) Save(ctx context.Context, _ map[string][]byte) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return ctx.Err()
}

func TestDegradedStoreDoesNotStallCallers(t *testing.T) {
	store := stalledStore{release: make(chan struct{})}
	c := New[media.Outcome](Policy{TTL: time.Hour, MaxEntries: 10}, store, logger.New(false))
	defer c.Close()
	defer close(store.release)

	start := time.Now()
	c.Put("youtube", "q", media.Outcome{})
	if _, ok := c.Get("youtube", "q"); !ok {
		t.Error("entry should serve from memory while the store hangs")
	}
	c.MarkResult("youtube", "q", true)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cache operations blocked on a hung store for %v", elapsed)
	}
}

func TestKeyShape(t *testing.T) {
	k := Key("youtube", "daft punk")
	if len(k) != 16 {
		t.Errorf("key length = %d, want 16", len(k))
	}
	if k != Key("youtube", "daft punk") {
		t.Error("key derivation is not stable")
	}
	if k == Key("deezer", "daft punk") {
		t.Error("different sources must not share keys")
	}
}
