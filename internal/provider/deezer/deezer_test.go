package deezer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"radiobot/internal/logger"
	"radiobot/internal/media"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Options{DownloadsDir: t.TempDir(), MinFileBytes: 4}, logger.New(false))
	c.apiURL = srv.URL
	return c
}

func TestSearchReturnsPreviewableTracks(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/search") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[
			{"id":1,"title":"First","duration":211,"preview":"http://cdn/1.mp3","artist":{"id":9,"name":"Someone"}},
			{"id":2,"title":"No Preview","duration":180,"preview":"","artist":{"id":9,"name":"Someone"}}
		]}`))
	}))

	cands, err := c.Search(context.Background(), "someone first", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].ID != "1" || cands[0].Artist != "Someone" {
		t.Errorf("unexpected candidate: %+v", cands[0])
	}
	if cands[0].Source != media.SourceDeezer {
		t.Errorf("candidate source = %s", cands[0].Source)
	}
}

func TestSearchNoResults(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))

	_, err := c.Search(context.Background(), "nothing", 5)
	if media.KindOf(err) != media.FailNotFound {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestSearchQuotaExceeded(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[],"error":{"type":"Exception","message":"Quota limit exceeded","code":4}}`))
	}))

	_, err := c.Search(context.Background(), "anything", 5)
	if media.KindOf(err) != media.FailBlocked {
		t.Errorf("expected blocked on quota, got %v", err)
	}
	if media.Retryable(err) {
		t.Error("quota failures must not be retried")
	}
}

func TestFetchDownloadsPreview(t *testing.T) {
	var previewURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/preview.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake mp3 payload"))
	})
	mux.HandleFunc("/track/42", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":42,"title":"Cached Song","duration":247,"preview":"` + previewURL + `","artist":{"id":1,"name":"Artist"}}`))
	})
	c := newTestClient(t, mux)
	previewURL = c.apiURL + "/preview.mp3"

	// Bare identifier forces a lookup before download.
	out, err := c.Fetch(context.Background(), media.Candidate{ID: "42", Source: media.SourceDeezer})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if _, err := os.Stat(out.FilePath); err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	if out.Meta.Duration != previewDuration {
		t.Errorf("duration = %d, want %d", out.Meta.Duration, previewDuration)
	}
	if !strings.HasSuffix(out.Meta.Title, "(preview)") {
		t.Errorf("title %q lacks preview marker", out.Meta.Title)
	}
}

func TestFetchRejectsTruncatedFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tiny.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	})
	c := newTestClient(t, mux)

	_, err := c.Fetch(context.Background(), media.Candidate{
		ID: "7", URL: c.apiURL + "/tiny.mp3", Title: "Tiny", Source: media.SourceDeezer,
	})
	if media.KindOf(err) != media.FailInvalidMedia {
		t.Errorf("expected invalid-media for truncated file, got %v", err)
	}
}
