package stream

import (
	"testing"

	"radiobot/internal/media"
)

func TestSearchExpr(t *testing.T) {
	c := &Client{src: media.SourceYouTube}

	if got := c.searchExpr("daft punk", 10); got != "ytsearch10:daft punk" {
		t.Errorf("searchExpr = %q", got)
	}
	// Native identifiers bypass the search template.
	if got := c.searchExpr("dQw4w9WgXcQ", 10); got != "dQw4w9WgXcQ" {
		t.Errorf("identifier query rewritten: %q", got)
	}

	sc := &Client{src: media.SourceSoundCloud}
	if got := sc.searchExpr("lofi beats", 5); got != "scsearch5:lofi beats" {
		t.Errorf("soundcloud searchExpr = %q", got)
	}
}

func TestSearchTextConventions(t *testing.T) {
	ytm := &Client{src: media.SourceYTMusic}
	if got := ytm.searchText("daft punk"); got != "daft punk music" {
		t.Errorf("ytmusic query = %q", got)
	}
	if got := ytm.searchText("lofi music"); got != "lofi music" {
		t.Errorf("ytmusic query double-qualified: %q", got)
	}

	yt := &Client{src: media.SourceYouTube}
	if got := yt.searchText("daft punk"); got != "daft punk" {
		t.Errorf("youtube query modified: %q", got)
	}
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		iso  string
		want int
	}{
		{"PT4M13S", 253},
		{"PT1H2M3S", 3723},
		{"PT45S", 45},
		{"PT2H", 7200},
		{"P1D", 0},
		{"garbage", 0},
		{"", 0},
	}
	for _, tc := range tests {
		if got := parseISODuration(tc.iso); got != tc.want {
			t.Errorf("parseISODuration(%q) = %d, want %d", tc.iso, got, tc.want)
		}
	}
}

func TestNewRejectsSearchlessSources(t *testing.T) {
	if _, err := New(media.SourceDeezer, nil, Options{}, nil); err == nil {
		t.Error("deezer has no engine search template and must be rejected")
	}
}
