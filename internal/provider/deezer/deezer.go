// Package deezer implements the preview-clip provider. Deezer only ever
// serves fixed 30-second excerpts, which makes it the guaranteed-available
// last resort in the fallback order; it has no long-form capability.
package deezer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"radiobot/internal/logger"
	"radiobot/internal/media"
	"radiobot/pkg/utils"
)

const previewDuration = 30

// Client is a Deezer API client that implements provider.Client.
type Client struct {
	httpClient   *http.Client
	apiURL       string
	downloadsDir string
	minFileBytes int64
	log          *logger.Logger
}

// Options configures a deezer client.
type Options struct {
	DownloadsDir string
	MinFileBytes int64
}

// New creates a new Deezer client.
func New(opts Options, log *logger.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		apiURL:       "https://api.deezer.com",
		downloadsDir: opts.DownloadsDir,
		minFileBytes: opts.MinFileBytes,
		log:          log,
	}
}

func (c *Client) Source() media.Source { return media.SourceDeezer }

// Search queries the Deezer search API. Only tracks that actually carry a
// preview reference become candidates.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]media.Candidate, error) {
	if limit < 1 {
		limit = 1
	}

	reqURL := fmt.Sprintf("%s/search?q=%s&limit=%d", c.apiURL, url.QueryEscape(query), limit)
	var resp searchResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		if resp.Error.Code == 4 { // quota exceeded
			return nil, media.Failf(media.FailBlocked, media.SourceDeezer, "api quota exceeded")
		}
		return nil, media.Failf(media.FailUnknown, media.SourceDeezer, "api error: %s", resp.Error.Message)
	}

	var cands []media.Candidate
	for _, item := range resp.Data {
		if item.Preview == "" {
			continue
		}
		cands = append(cands, media.Candidate{
			ID:       strconv.FormatInt(item.ID, 10),
			Title:    item.Title,
			Artist:   item.Artist.Name,
			Duration: item.Duration,
			URL:      item.Preview,
			Source:   media.SourceDeezer,
		})
	}
	if len(cands) == 0 {
		return nil, media.Failf(media.FailNotFound, media.SourceDeezer, "no previewable tracks for %q", query)
	}
	return cands, nil
}

// Fetch downloads a candidate's preview clip. When the candidate is a bare
// identifier (cache hit or short-circuit), the track is looked up first.
func (c *Client) Fetch(ctx context.Context, cand media.Candidate) (media.Outcome, error) {
	if cand.URL == "" {
		resolved, err := c.lookup(ctx, cand.ID)
		if err != nil {
			return media.Outcome{}, err
		}
		cand = resolved
	}

	// Deterministic name per identifier: repeated fetches overwrite.
	path := filepath.Join(c.downloadsDir, fmt.Sprintf("dz_%08x.mp3", hash(cand.ID)))
	if err := c.downloadPreview(ctx, cand.URL, path); err != nil {
		return media.Outcome{}, err
	}

	if err := utils.ValidateFile(path, c.minFileBytes); err != nil {
		utils.RemoveQuietly(path)
		return media.Outcome{}, media.Failf(media.FailInvalidMedia, media.SourceDeezer, "%v", err)
	}

	// Whatever the full track's length is, the file holds 30 seconds.
	return media.Outcome{
		FilePath: path,
		Meta: media.NewTrackMetadata(
			cand.Title+" (preview)", cand.Artist, previewDuration, media.SourceDeezer),
	}, nil
}

// lookup resolves a native track identifier to a candidate with a preview URL.
func (c *Client) lookup(ctx context.Context, id string) (media.Candidate, error) {
	var item trackItem
	if err := c.getJSON(ctx, fmt.Sprintf("%s/track/%s", c.apiURL, url.PathEscape(id)), &item); err != nil {
		return media.Candidate{}, err
	}
	if item.Preview == "" {
		return media.Candidate{}, media.Failf(media.FailNotFound, media.SourceDeezer, "track %s has no preview", id)
	}
	return media.Candidate{
		ID:       id,
		Title:    item.Title,
		Artist:   item.Artist.Name,
		Duration: item.Duration,
		URL:      item.Preview,
		Source:   media.SourceDeezer,
	}, nil
}

func (c *Client) downloadPreview(ctx context.Context, previewURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, previewURL, nil)
	if err != nil {
		return media.WrapFailure(media.FailUnknown, media.SourceDeezer, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyHTTPErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return media.Failf(media.FailNotFound, media.SourceDeezer, "preview download returned %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return media.WrapFailure(media.FailUnknown, media.SourceDeezer, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		utils.RemoveQuietly(path)
		return media.WrapFailure(media.FailUnknown, media.SourceDeezer, err)
	}
	return f.Close()
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return media.WrapFailure(media.FailUnknown, media.SourceDeezer, err)
	}
	req.Header.Set("User-Agent", "radiobot/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyHTTPErr(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return media.Failf(media.FailBlocked, media.SourceDeezer, "upstream returned 429")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return media.Failf(media.FailNotFound, media.SourceDeezer, "search returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return media.WrapFailure(media.FailUnknown, media.SourceDeezer,
			fmt.Errorf("failed to decode deezer response: %w", err))
	}
	return nil
}

func classifyHTTPErr(err error) error {
	if timeoutErr, ok := err.(interface{ Timeout() bool }); ok && timeoutErr.Timeout() {
		return media.Failf(media.FailTimeout, media.SourceDeezer, "request timed out")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return media.Failf(media.FailTimeout, media.SourceDeezer, "request timed out")
	}
	return media.WrapFailure(media.FailUnknown, media.SourceDeezer, err)
}

func hash(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte("dz_" + id))
	return h.Sum32()
}

// Deezer API response types

type searchResponse struct {
	Data  []trackItem `json:"data"`
	Error *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type trackItem struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Duration int    `json:"duration"`
	Preview  string `json:"preview"`
	Artist   artist `json:"artist"`
}

type artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
