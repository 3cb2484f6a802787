package extractor

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/lrstanley/go-ytdlp"

	"radiobot/internal/logger"
	"radiobot/internal/media"
)

func TestCookieBlobMaterialization(t *testing.T) {
	e, err := New(Options{
		DownloadsDir: t.TempDir(),
		AudioFormat:  "mp3",
		CookiesText:  "# Netscape HTTP Cookie File\n.example.com\tTRUE\t/\tFALSE\t0\tsid\tabc\n",
	}, logger.New(false))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if e.cookiesFile == "" {
		t.Fatal("cookie blob was not materialized")
	}
	data, err := os.ReadFile(e.cookiesFile)
	if err != nil {
		t.Fatalf("cookie file unreadable: %v", err)
	}
	if len(data) == 0 {
		t.Error("cookie file is empty")
	}

	e.Close()
	if _, err := os.Stat(e.cookiesFile); !os.IsNotExist(err) {
		t.Error("cookie file survived Close")
	}
}

func TestMissingCookiesIsNotFatal(t *testing.T) {
	e, err := New(Options{DownloadsDir: t.TempDir(), AudioFormat: "mp3"}, logger.New(false))
	if err != nil {
		t.Fatalf("New failed without cookies: %v", err)
	}
	if e.cookiesFile != "" {
		t.Error("cookie file created from empty blob")
	}
}

func TestBestArtistPriority(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{"artist wins", Entry{Artist: "A", Uploader: "U", Channel: "C"}, "A"},
		{"uploader next", Entry{Uploader: "U", Channel: "C"}, "U"},
		{"channel last", Entry{Channel: "C"}, "C"},
		{"all empty", Entry{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.BestArtist(); got != tt.want {
				t.Errorf("BestArtist() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDump(t *testing.T) {
	// Flat playlist output: entries array.
	payload, err := parseDump(`{"id":"list","entries":[{"id":"abc","title":"One","duration":211.4}]}`)
	if err != nil {
		t.Fatalf("parseDump failed: %v", err)
	}
	if len(payload.Entries) != 1 || payload.Entries[0].ID != "abc" {
		t.Errorf("entries = %+v", payload.Entries)
	}
	if payload.Entries[0].Duration != 211.4 {
		t.Errorf("duration = %v", payload.Entries[0].Duration)
	}

	// Single video output: fields at the top level.
	payload, err = parseDump(`{"id":"xyz","title":"Solo","uploader":"Someone","webpage_url":"https://example.com/xyz"}`)
	if err != nil {
		t.Fatalf("parseDump failed: %v", err)
	}
	if payload.ID != "xyz" || len(payload.Entries) != 0 {
		t.Errorf("payload = %+v", payload)
	}

	if _, err := parseDump("not json"); err == nil {
		t.Error("expected error for garbage output")
	}
}

func TestClassify(t *testing.T) {
	e := &Engine{log: logger.New(false)}

	err := e.classify(media.SourceYouTube, nil, context.DeadlineExceeded)
	if media.KindOf(err) != media.FailTimeout {
		t.Errorf("deadline classified as %v", media.KindOf(err))
	}

	res := &ytdlp.Result{Stderr: "ERROR: HTTP Error 429: Too Many Requests"}
	err = e.classify(media.SourceYouTube, res, errors.New("exit status 1"))
	if media.KindOf(err) != media.FailBlocked {
		t.Errorf("429 classified as %v", media.KindOf(err))
	}

	err = e.classify(media.SourceYouTube, nil, errors.New("something odd"))
	if media.KindOf(err) != media.FailUnknown {
		t.Errorf("generic error classified as %v", media.KindOf(err))
	}
}
