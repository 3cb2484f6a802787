// Package librivox serves public-domain audiobooks. It is a long-form-only
// provider: track requests never reach it.
package librivox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

// Client is a LibriVox API client that implements provider.Client.
type Client struct {
	httpClient   *http.Client
	apiURL       string
	downloadsDir string
	minFileBytes int64
	log          *logger.Logger
}

// Options configures a librivox client.
type Options struct {
	DownloadsDir string
	MinFileBytes int64
}

// New creates a new LibriVox client.
func New(opts Options, log *logger.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		apiURL:       "https://librivox.org/api/feed",
		downloadsDir: opts.DownloadsDir,
		minFileBytes: opts.MinFileBytes,
		log:          log,
	}
}

func (c *Client) Source() media.Source { return media.SourceLibriVox }

// Search queries the audiobook feed by title prefix. The extended form is
// requested so that section listings and total runtimes come back in one call.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]media.Candidate, error) {
	if limit < 1 {
		limit = 1
	}

	reqURL := fmt.Sprintf("%s/audiobooks?title=^%s&format=json&extended=1&limit=%d",
		c.apiURL, url.QueryEscape(query), limit)
	books, err := c.getBooks(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var cands []media.Candidate
	for _, b := range books {
		section, ok := b.firstSection()
		if !ok {
			continue
		}
		cands = append(cands, media.Candidate{
			ID:       strconv.FormatInt(b.ID, 10),
			Title:    b.Title,
			Artist:   b.authorName(),
			Duration: b.TotalTimeSecs,
			URL:      section.PlayURL,
			Source:   media.SourceLibriVox,
		})
	}
	if len(cands) == 0 {
		return nil, media.Failf(media.FailNotFound, media.SourceLibriVox, "no audiobooks matching %q", query)
	}
	return cands, nil
}

// Fetch downloads the opening section of an audiobook. Candidates resolved
// from the cache carry only an identifier and are looked up again first.
func (c *Client) Fetch(ctx context.Context, cand media.Candidate) (media.Outcome, error) {
	if cand.URL == "" {
		resolved, err := c.lookup(ctx, cand.ID)
		if err != nil {
			return media.Outcome{}, err
		}
		cand = resolved
	}

	path := filepath.Join(c.downloadsDir, fmt.Sprintf("lv_%s.mp3", cand.ID))
	if err := c.download(ctx, cand.URL, path); err != nil {
		return media.Outcome{}, err
	}

	if err := utils.ValidateFile(path, c.minFileBytes); err != nil {
		utils.RemoveQuietly(path)
		return media.Outcome{}, media.Failf(media.FailInvalidMedia, media.SourceLibriVox, "%v", err)
	}

	return media.Outcome{
		FilePath: path,
		Meta:     media.NewTrackMetadata(cand.Title, cand.Artist, cand.Duration, media.SourceLibriVox),
	}, nil
}

func (c *Client) lookup(ctx context.Context, id string) (media.Candidate, error) {
	reqURL := fmt.Sprintf("%s/audiobooks?id=%s&format=json&extended=1", c.apiURL, url.QueryEscape(id))
	books, err := c.getBooks(ctx, reqURL)
	if err != nil {
		return media.Candidate{}, err
	}
	if len(books) == 0 {
		return media.Candidate{}, media.Failf(media.FailNotFound, media.SourceLibriVox, "audiobook %s not found", id)
	}
	b := books[0]
	section, ok := b.firstSection()
	if !ok {
		return media.Candidate{}, media.Failf(media.FailNotFound, media.SourceLibriVox, "audiobook %s has no sections", id)
	}
	return media.Candidate{
		ID:       id,
		Title:    b.Title,
		Artist:   b.authorName(),
		Duration: b.TotalTimeSecs,
		URL:      section.PlayURL,
		Source:   media.SourceLibriVox,
	}, nil
}

func (c *Client) getBooks(ctx context.Context, reqURL string) ([]book, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, media.WrapFailure(media.FailUnknown, media.SourceLibriVox, err)
	}
	req.Header.Set("User-Agent", "radiobot/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyHTTPErr(err)
	}
	defer resp.Body.Close()

	// The feed answers 404 when no title matches the prefix.
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, media.Failf(media.FailBlocked, media.SourceLibriVox, "upstream returned 429")
	case resp.StatusCode != http.StatusOK:
		return nil, media.Failf(media.FailUnknown, media.SourceLibriVox, "feed returned %d", resp.StatusCode)
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, media.WrapFailure(media.FailUnknown, media.SourceLibriVox,
			fmt.Errorf("failed to decode librivox response: %w", err))
	}
	return payload.Books, nil
}

func (c *Client) download(ctx context.Context, fileURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return media.WrapFailure(media.FailUnknown, media.SourceLibriVox, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyHTTPErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return media.Failf(media.FailNotFound, media.SourceLibriVox, "section download returned %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return media.WrapFailure(media.FailUnknown, media.SourceLibriVox, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		utils.RemoveQuietly(path)
		return media.WrapFailure(media.FailUnknown, media.SourceLibriVox, err)
	}
	return f.Close()
}

func classifyHTTPErr(err error) error {
	if timeoutErr, ok := err.(interface{ Timeout() bool }); ok && timeoutErr.Timeout() {
		return media.Failf(media.FailTimeout, media.SourceLibriVox, "request timed out")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return media.Failf(media.FailTimeout, media.SourceLibriVox, "request timed out")
	}
	return media.WrapFailure(media.FailUnknown, media.SourceLibriVox, err)
}

// LibriVox feed response types. The book id arrives as a quoted string in
// the extended format.

type feedResponse struct {
	Books []book `json:"books"`
}

type book struct {
	ID            int64     `json:"id,string"`
	Title         string    `json:"title"`
	TotalTimeSecs int       `json:"totaltimesecs"`
	Authors       []author  `json:"authors"`
	Sections      []section `json:"sections"`
}

type author struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type section struct {
	SectionNumber string `json:"section_number"`
	Title         string `json:"title"`
	PlayURL       string `json:"listen_url"`
}

func (b book) authorName() string {
	if len(b.Authors) == 0 {
		return "LibriVox"
	}
	a := b.Authors[0]
	name := a.FirstName + " " + a.LastName
	if name == " " {
		return "LibriVox"
	}
	return name
}

func (b book) firstSection() (section, bool) {
	for _, s := range b.Sections {
		if s.PlayURL != "" {
			return s, true
		}
	}
	return section{}, false
}
