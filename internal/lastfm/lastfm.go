// Package lastfm suggests tracks for a genre tag. The radio scheduler uses
// it to seed searches with real song names instead of bare genre keywords.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"radiobot/internal/logger"
)

const (
	suggestionTTL = 30 * time.Minute
	maxTracks     = 50
)

// Client is a Last.fm API client. A zero API key produces a disabled client
// that reports no suggestions.
type Client struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	memo       *gocache.Cache
	log        *logger.Logger
}

// New creates a new Last.fm client.
func New(apiKey string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiURL:     "https://ws.audioscrobbler.com/2.0/",
		apiKey:     apiKey,
		memo:       gocache.New(suggestionTTL, 10*time.Minute),
		log:        log,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// TopTracks returns "artist - title" suggestions for a genre tag. Results
// are memoized so a rotating radio loop does not hammer the API.
func (c *Client) TopTracks(ctx context.Context, tag string, limit int) ([]string, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if limit < 1 || limit > maxTracks {
		limit = maxTracks
	}

	memoKey := fmt.Sprintf("%s:%d", tag, limit)
	if cached, ok := c.memo.Get(memoKey); ok {
		return cached.([]string), nil
	}

	q := url.Values{}
	q.Set("method", "tag.gettoptracks")
	q.Set("tag", tag)
	q.Set("api_key", c.apiKey)
	q.Set("format", "json")
	q.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lastfm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("lastfm returned %d: %s", resp.StatusCode, body)
	}

	var payload topTracksResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode lastfm response: %w", err)
	}
	if payload.Error != 0 {
		return nil, fmt.Errorf("lastfm error %d: %s", payload.Error, payload.Message)
	}

	var suggestions []string
	for _, tr := range payload.Tracks.Track {
		if tr.Name == "" || tr.Artist.Name == "" {
			continue
		}
		suggestions = append(suggestions, tr.Artist.Name+" - "+tr.Name)
	}

	c.memo.Set(memoKey, suggestions, gocache.DefaultExpiration)
	return suggestions, nil
}

type topTracksResponse struct {
	Tracks struct {
		Track []struct {
			Name   string `json:"name"`
			Artist struct {
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"track"`
	} `json:"tracks"`
	Error   int    `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
