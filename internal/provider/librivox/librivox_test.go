package librivox

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"radiobot/internal/logger"
	"radiobot/internal/media"
)

const feedBody = `{"books":[
	{"id":"52","title":"Pride and Prejudice","totaltimesecs":41234,
	 "authors":[{"first_name":"Jane","last_name":"Austen"}],
	 "sections":[
		{"section_number":"1","title":"Chapter 01","listen_url":"%s/chapter01.mp3"},
		{"section_number":"2","title":"Chapter 02","listen_url":"%s/chapter02.mp3"}
	 ]},
	{"id":"53","title":"Empty Book","totaltimesecs":100,"authors":[],"sections":[]}
]}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Options{DownloadsDir: t.TempDir(), MinFileBytes: 4}, logger.New(false))
	c.apiURL = srv.URL
	return c
}

func feedHandler(srvURL *string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/audiobooks", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, feedBody, *srvURL, *srvURL)
	})
	mux.HandleFunc("/chapter01.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake audiobook chapter"))
	})
	return mux
}

func TestSearchSkipsBooksWithoutSections(t *testing.T) {
	var srvURL string
	c := newTestClient(t, feedHandler(&srvURL))
	srvURL = c.apiURL

	cands, err := c.Search(context.Background(), "pride", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	got := cands[0]
	if got.ID != "52" || got.Artist != "Jane Austen" || got.Duration != 41234 {
		t.Errorf("unexpected candidate: %+v", got)
	}
}

func TestSearchNotFoundOn404(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.Search(context.Background(), "no such book", 5)
	if media.KindOf(err) != media.FailNotFound {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestFetchDownloadsFirstSection(t *testing.T) {
	var srvURL string
	c := newTestClient(t, feedHandler(&srvURL))
	srvURL = c.apiURL

	// Identifier-only candidate exercises the lookup path.
	out, err := c.Fetch(context.Background(), media.Candidate{ID: "52", Source: media.SourceLibriVox})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if _, err := os.Stat(out.FilePath); err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	if out.Meta.Artist != "Jane Austen" {
		t.Errorf("artist = %q", out.Meta.Artist)
	}
	if out.Meta.Duration != 41234 {
		t.Errorf("duration = %d", out.Meta.Duration)
	}
}
