// Package media holds the domain model shared by the download core:
// sources, queries, candidates, track metadata and download outcomes.
package media

import (
	"fmt"
	"regexp"
	"strings"
)

// Source identifies one upstream a track can be searched on and fetched from.
type Source string

const (
	SourceYouTube    Source = "youtube"
	SourceYTMusic    Source = "ytmusic"
	SourceSoundCloud Source = "soundcloud"
	SourceArchive    Source = "archive"
	SourceDeezer     Source = "deezer"
	SourceLibriVox   Source = "librivox"
)

// SourceInfo describes the fixed quirks of a source.
type SourceInfo struct {
	// SearchPrefix is the yt-dlp search expression prefix ("ytsearch%d:"),
	// empty for sources with their own REST search API.
	SearchPrefix string
	// IDPattern matches a native identifier for the source. A query matching
	// it bypasses the search phase entirely.
	IDPattern *regexp.Regexp
	// LongForm reports whether the source can serve content longer than a
	// preview or a single track (audiobooks, mixes).
	LongForm bool
	// PreviewOnly sources only ever return fixed-length excerpts.
	PreviewOnly bool
	// NeedsCookies marks sources that are rate-limited without a session.
	NeedsCookies bool
	// DefaultDuration substitutes a zero duration reported upstream, seconds.
	DefaultDuration int
}

var sourceInfos = map[Source]SourceInfo{
	SourceYouTube: {
		SearchPrefix:    "ytsearch%d:",
		IDPattern:       regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`),
		LongForm:        true,
		NeedsCookies:    true,
		DefaultDuration: 180,
	},
	SourceYTMusic: {
		SearchPrefix:    "ytsearch%d:",
		IDPattern:       regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`),
		LongForm:        true,
		NeedsCookies:    true,
		DefaultDuration: 180,
	},
	SourceSoundCloud: {
		SearchPrefix:    "scsearch%d:",
		DefaultDuration: 180,
	},
	SourceArchive: {
		SearchPrefix:    "ytsearch%d:",
		LongForm:        true,
		DefaultDuration: 180,
	},
	SourceDeezer: {
		IDPattern:       regexp.MustCompile(`^[0-9]{5,12}$`),
		PreviewOnly:     true,
		DefaultDuration: 30,
	},
	SourceLibriVox: {
		IDPattern:       regexp.MustCompile(`^[0-9]{1,8}$`),
		LongForm:        true,
		DefaultDuration: 1800,
	},
}

// Info returns the descriptor for s. Unknown sources get a zero descriptor.
func (s Source) Info() SourceInfo {
	return sourceInfos[s]
}

// MatchesID reports whether q is a native identifier for s.
func (s Source) MatchesID(q string) bool {
	info := sourceInfos[s]
	return info.IDPattern != nil && info.IDPattern.MatchString(q)
}

func (s Source) String() string { return string(s) }

// ParseSource converts a user-supplied source name.
func ParseSource(name string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := sourceInfos[s]; !ok {
		return "", fmt.Errorf("unknown source %q", name)
	}
	return s, nil
}

// Sources returns the closed set of known sources.
func Sources() []Source {
	return []Source{
		SourceYouTube, SourceYTMusic, SourceSoundCloud,
		SourceArchive, SourceDeezer, SourceLibriVox,
	}
}

// trackFallback is the fixed fallback order for regular track requests.
// Deezer previews are the guaranteed last resort.
var trackFallback = []Source{SourceYouTube, SourceSoundCloud, SourceDeezer}

// longFormFallback is the order for audiobook/podcast style requests.
var longFormFallback = []Source{SourceLibriVox, SourceYouTube}

// FallbackOrder returns the sources to try for a request, preferred first,
// then the fixed order with duplicates removed.
func FallbackOrder(preferred Source, longForm bool) []Source {
	tail := trackFallback
	if longForm {
		tail = longFormFallback
	}
	order := []Source{preferred}
	for _, s := range tail {
		if s != preferred {
			order = append(order, s)
		}
	}
	return order
}

// NormalizeQuery lower-cases and trims a query so cache keys are stable.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

const maxFieldLen = 100

// TruncateField shortens a metadata field to the wire-safe length, appending
// an ellipsis when anything was cut. The limit counts runes, not bytes, so
// multi-byte titles are never cut mid-character.
func TruncateField(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxFieldLen {
		return s
	}
	return string(runes[:maxFieldLen-1]) + "…"
}

// TrackMetadata describes a fetched track.
type TrackMetadata struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration int    `json:"duration"` // seconds
	Source   Source `json:"source"`
}

// NewTrackMetadata builds metadata with field truncation and the source's
// default duration substituted for zero.
func NewTrackMetadata(title, artist string, duration int, src Source) TrackMetadata {
	if title == "" {
		title = "Unknown"
	}
	if artist == "" {
		artist = "Unknown"
	}
	if duration <= 0 {
		duration = src.Info().DefaultDuration
	}
	return TrackMetadata{
		Title:    TruncateField(title),
		Artist:   TruncateField(artist),
		Duration: duration,
		Source:   src,
	}
}

// DisplayName renders "artist — title" for captions and logs.
func (m TrackMetadata) DisplayName() string {
	return m.Artist + " — " + m.Title
}

// Candidate is a search result before it has been fetched.
type Candidate struct {
	ID       string
	Title    string
	Artist   string
	Duration int // seconds, 0 when the upstream did not report one
	URL      string
	Source   Source
}

// Outcome is a successful download: a materialized local file plus metadata.
// The file is owned exclusively by the caller, which must delete it after use.
type Outcome struct {
	FilePath string        `json:"file_path"`
	Meta     TrackMetadata `json:"meta"`
}
