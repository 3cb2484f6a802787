// Package extractor wraps the external yt-dlp engine behind a small typed
// surface: flat search and audio fetch. The engine binary is stateful and
// not safely re-entrant, so every invocation is serialized process-wide by
// a single mutex; queuing fairness is the governor's job.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lrstanley/go-ytdlp"

	"radiobot/internal/logger"
	"radiobot/internal/media"
	"radiobot/pkg/utils"
)

// Engine invokes yt-dlp with a declarative configuration.
type Engine struct {
	log          *logger.Logger
	downloadsDir string
	audioFormat  string
	cookiesFile  string

	mu sync.Mutex
}

// Options configures a new Engine.
type Options struct {
	DownloadsDir string
	AudioFormat  string
	// CookiesText is the raw session-cookie blob from the credential store.
	// Empty means requests may be rate-limited; never a hard failure.
	CookiesText string
}

// New prepares the downloads directory and materializes the cookie blob to a
// temp file for the engine to consume.
func New(opts Options, log *logger.Logger) (*Engine, error) {
	if err := utils.EnsureDir(opts.DownloadsDir); err != nil {
		return nil, err
	}

	e := &Engine{
		log:          log,
		downloadsDir: opts.DownloadsDir,
		audioFormat:  opts.AudioFormat,
	}

	if opts.CookiesText != "" {
		f, err := os.CreateTemp("", "radiobot-cookies-*.txt")
		if err != nil {
			return nil, fmt.Errorf("failed to create cookies file: %w", err)
		}
		if _, err := f.WriteString(opts.CookiesText); err != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, fmt.Errorf("failed to write cookies file: %w", err)
		}
		f.Close()
		e.cookiesFile = f.Name()
		log.Debug("cookies file created: %s", e.cookiesFile)
	} else {
		log.Warn("COOKIES_TEXT not set, upstream requests may be rate-limited")
	}

	return e, nil
}

// Install makes sure a usable yt-dlp binary is present, downloading one when
// the host has none.
func (e *Engine) Install(ctx context.Context) error {
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return fmt.Errorf("yt-dlp install failed: %w", err)
	}
	return nil
}

// Close removes the materialized cookie file.
func (e *Engine) Close() {
	if e.cookiesFile != "" {
		utils.RemoveQuietly(e.cookiesFile)
	}
}

// Entry is one record reported by the engine, either a flat search result or
// a fully extracted video.
type Entry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
	Artist   string  `json:"artist"`
	Duration float64 `json:"duration"`
	URL      string  `json:"webpage_url"`
}

// Artist/uploader/channel are probed in a fixed priority order, never by
// reflection.
func (en Entry) BestArtist() string {
	for _, v := range []string{en.Artist, en.Uploader, en.Channel} {
		if v != "" {
			return v
		}
	}
	return ""
}

type dumpPayload struct {
	Entry
	Entries []Entry `json:"entries"`
}

// Search issues a search expression (e.g. "ytsearch10:query" or a bare
// native identifier) and returns the reported entries without downloading.
func (e *Engine) Search(ctx context.Context, src media.Source, expr string) ([]Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("extractor search (%s): %s", src, expr)

	dl := ytdlp.New().
		Quiet().
		DumpSingleJSON().
		FlatPlaylist()
	e.applyCookies(dl)

	res, err := dl.Run(ctx, expr)
	if err != nil {
		return nil, e.classify(src, res, err)
	}

	payload, err := parseDump(res.Stdout)
	if err != nil {
		return nil, media.WrapFailure(media.FailUnknown, src, err)
	}

	entries := payload.Entries
	if len(entries) == 0 && payload.ID != "" {
		entries = []Entry{payload.Entry}
	}
	if len(entries) == 0 {
		return nil, media.Failf(media.FailNotFound, src, "no entries for %q", expr)
	}
	return entries, nil
}

// Fetch downloads one identifier or URL as audio and returns the local file
// path plus the extracted metadata. Output filenames derive from the media
// identifier, so repeated fetches overwrite instead of accumulating.
func (e *Engine) Fetch(ctx context.Context, src media.Source, expr string) (string, Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("extractor fetch (%s): %s", src, expr)

	dl := ytdlp.New().
		Quiet().
		NoPlaylist().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat(e.audioFormat).
		Output(filepath.Join(e.downloadsDir, "%(id)s.%(ext)s")).
		DumpSingleJSON().
		NoSimulate()
	e.applyCookies(dl)

	res, err := dl.Run(ctx, expr)
	if err != nil {
		return "", Entry{}, e.classify(src, res, err)
	}

	payload, err := parseDump(res.Stdout)
	if err != nil {
		return "", Entry{}, media.WrapFailure(media.FailUnknown, src, err)
	}

	entry := payload.Entry
	if len(payload.Entries) > 0 {
		entry = payload.Entries[0]
	}
	if entry.ID == "" {
		return "", Entry{}, media.Failf(media.FailInvalidMedia, src, "engine reported no media id for %q", expr)
	}

	path, err := utils.FindByStem(e.downloadsDir, entry.ID)
	if err != nil {
		return "", Entry{}, media.Failf(media.FailInvalidMedia, src, "downloaded file not found: %v", err)
	}
	return path, entry, nil
}

func (e *Engine) applyCookies(dl *ytdlp.Command) {
	if e.cookiesFile != "" {
		dl.Cookies(e.cookiesFile)
	}
}

// classify maps an engine failure onto the error taxonomy. Context expiry is
// a timeout; explicit upstream rejection markers mean blocked.
func (e *Engine) classify(src media.Source, res *ytdlp.Result, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return media.Failf(media.FailTimeout, src, "extraction deadline exceeded")
	}

	detail := err.Error()
	if res != nil && res.Stderr != "" {
		detail = res.Stderr
	}
	if media.LooksBlocked(detail) {
		e.log.Warn("extractor: %s looks blocked, credential refresh needed", src)
		return media.Failf(media.FailBlocked, src, "upstream rejected the request")
	}
	return media.WrapFailure(media.FailUnknown, src, err)
}

func parseDump(stdout string) (dumpPayload, error) {
	var payload dumpPayload
	if err := json.Unmarshal([]byte(stdout), &payload); err != nil {
		return payload, fmt.Errorf("failed to decode engine output: %w", err)
	}
	return payload, nil
}
