// Package stream implements the yt-dlp-backed providers: youtube, ytmusic,
// soundcloud and archive. All of them share the extraction engine; they only
// differ in search expression templates and descriptor quirks.
package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"radiobot/internal/extractor"
	"radiobot/internal/logger"
	"radiobot/internal/media"
	"radiobot/pkg/utils"
)

// memoTTL bounds how long identical search expressions are served from
// memory. Repeated radio cycles hit the same genre queries back to back.
const memoTTL = 5 * time.Minute

// Client is one yt-dlp-backed provider.
type Client struct {
	src          media.Source
	engine       *extractor.Engine
	log          *logger.Logger
	minFileBytes int64
	memo         *gocache.Cache
	api          *apiSearch // nil unless a YouTube API key is configured
}

// Options configures a stream client.
type Options struct {
	MinFileBytes int64
	// YouTubeAPIKey enables the Data API search path for the youtube and
	// ytmusic sources, skipping the engine's search pass.
	YouTubeAPIKey string
}

// New builds a client for src backed by the shared engine.
func New(src media.Source, engine *extractor.Engine, opts Options, log *logger.Logger) (*Client, error) {
	info := src.Info()
	if info.SearchPrefix == "" {
		return nil, fmt.Errorf("source %s has no search expression template", src)
	}

	c := &Client{
		src:          src,
		engine:       engine,
		log:          log,
		minFileBytes: opts.MinFileBytes,
		memo:         gocache.New(memoTTL, 10*time.Minute),
	}

	if opts.YouTubeAPIKey != "" && (src == media.SourceYouTube || src == media.SourceYTMusic) {
		api, err := newAPISearch(opts.YouTubeAPIKey)
		if err != nil {
			return nil, err
		}
		c.api = api
		log.Debug("%s: using the Data API search path", src)
	}

	return c, nil
}

func (c *Client) Source() media.Source { return c.src }

// Search resolves a query into candidates. A query matching the source's
// native identifier format is asked about directly, without a search pass.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]media.Candidate, error) {
	if limit < 1 {
		limit = 1
	}

	expr := c.searchExpr(query, limit)
	if cached, ok := c.memo.Get(expr); ok {
		return cached.([]media.Candidate), nil
	}

	var (
		cands []media.Candidate
		err   error
	)
	if c.api != nil && !c.src.MatchesID(query) {
		cands, err = c.api.search(ctx, c.src, c.searchText(query), limit)
	} else {
		cands, err = c.engineSearch(ctx, expr)
	}
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, media.Failf(media.FailNotFound, c.src, "no candidates for %q", query)
	}

	c.memo.Set(expr, cands, gocache.DefaultExpiration)
	return cands, nil
}

func (c *Client) engineSearch(ctx context.Context, expr string) ([]media.Candidate, error) {
	entries, err := c.engine.Search(ctx, c.src, expr)
	if err != nil {
		return nil, err
	}

	cands := make([]media.Candidate, 0, len(entries))
	for _, en := range entries {
		if en.ID == "" {
			continue
		}
		cands = append(cands, media.Candidate{
			ID:       en.ID,
			Title:    en.Title,
			Artist:   en.BestArtist(),
			Duration: int(en.Duration),
			URL:      en.URL,
			Source:   c.src,
		})
	}
	return cands, nil
}

// Fetch downloads a candidate through the engine and validates the result.
func (c *Client) Fetch(ctx context.Context, cand media.Candidate) (media.Outcome, error) {
	expr := cand.URL
	if expr == "" {
		expr = cand.ID
	}
	if expr == "" {
		return media.Outcome{}, media.Failf(media.FailNotFound, c.src, "candidate has no media reference")
	}

	path, entry, err := c.engine.Fetch(ctx, c.src, expr)
	if err != nil {
		return media.Outcome{}, err
	}

	if err := utils.ValidateFile(path, c.minFileBytes); err != nil {
		utils.RemoveQuietly(path)
		return media.Outcome{}, media.Failf(media.FailInvalidMedia, c.src, "%v", err)
	}

	title := entry.Title
	if title == "" {
		title = cand.Title
	}
	artist := entry.BestArtist()
	if artist == "" {
		artist = cand.Artist
	}
	duration := int(entry.Duration)
	if duration == 0 {
		duration = cand.Duration
	}

	return media.Outcome{
		FilePath: path,
		Meta:     media.NewTrackMetadata(title, artist, duration, c.src),
	}, nil
}

// searchExpr builds the engine search expression, or the bare identifier
// when the query already is one.
func (c *Client) searchExpr(query string, limit int) string {
	if c.src.MatchesID(query) {
		return query
	}
	prefix := fmt.Sprintf(c.src.Info().SearchPrefix, limit)
	return prefix + c.searchText(query)
}

// searchText applies the source's query conventions.
func (c *Client) searchText(query string) string {
	switch c.src {
	case media.SourceYTMusic:
		if !strings.Contains(strings.ToLower(query), "music") {
			return query + " music"
		}
	case media.SourceArchive:
		return query + " archive"
	}
	return query
}
