package media

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" Daft Punk ", "daft punk"},
		{"daft punk", "daft punk"},
		{"  MIXED Case\t", "mixed case"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := NormalizeQuery(tc.in); got != tc.want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMatchesID(t *testing.T) {
	tests := []struct {
		src   Source
		query string
		want  bool
	}{
		{SourceYouTube, "dQw4w9WgXcQ", true},
		{SourceYouTube, "abcd12345ef", true},
		{SourceYouTube, "too short", false},
		{SourceYouTube, "waytoolongtobeavideoid", false},
		{SourceDeezer, "3135556", true},
		{SourceDeezer, "not a number", false},
		{SourceSoundCloud, "dQw4w9WgXcQ", false},
	}
	for _, tc := range tests {
		if got := tc.src.MatchesID(tc.query); got != tc.want {
			t.Errorf("%s.MatchesID(%q) = %v, want %v", tc.src, tc.query, got, tc.want)
		}
	}
}

func TestFallbackOrder(t *testing.T) {
	order := FallbackOrder(SourceSoundCloud, false)
	if order[0] != SourceSoundCloud {
		t.Errorf("preferred source not first: %v", order)
	}
	if order[len(order)-1] != SourceDeezer {
		t.Errorf("deezer is not the last resort: %v", order)
	}
	seen := map[Source]bool{}
	for _, s := range order {
		if seen[s] {
			t.Errorf("duplicate source %s in %v", s, order)
		}
		seen[s] = true
	}

	long := FallbackOrder(SourceYouTube, true)
	if long[0] != SourceYouTube || long[1] != SourceLibriVox {
		t.Errorf("unexpected long-form order: %v", long)
	}
}

func TestNewTrackMetadataDefaults(t *testing.T) {
	m := NewTrackMetadata("Title", "", 0, SourceYouTube)
	if m.Artist != "Unknown" {
		t.Errorf("empty artist not defaulted: %q", m.Artist)
	}
	if m.Duration != 180 {
		t.Errorf("zero duration should use the source default, got %d", m.Duration)
	}

	preview := NewTrackMetadata("Clip", "Someone", 0, SourceDeezer)
	if preview.Duration != 30 {
		t.Errorf("deezer default duration = %d, want 30", preview.Duration)
	}
}

func TestTruncateField(t *testing.T) {
	long := strings.Repeat("a", 250)
	got := TruncateField(long)
	if n := utf8.RuneCountInString(got); n != 100 {
		t.Errorf("field not truncated to the limit: %d runes", n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated field missing ellipsis: %q", got)
	}
	if TruncateField("short") != "short" {
		t.Error("short field was modified")
	}
}

func TestTruncateFieldCountsRunes(t *testing.T) {
	// 60 characters but 120 bytes: well under the limit, must pass through.
	cyrillic := strings.Repeat("ж", 60)
	if got := TruncateField(cyrillic); got != cyrillic {
		t.Errorf("multi-byte field under the limit was modified: %q", got)
	}

	long := strings.Repeat("ж", 150)
	got := TruncateField(long)
	if n := utf8.RuneCountInString(got); n != 100 {
		t.Errorf("truncated to %d runes, want 100", n)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated field missing ellipsis: %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	m := TrackMetadata{Title: "One More Time", Artist: "Daft Punk"}
	if got := m.DisplayName(); got != "Daft Punk — One More Time" {
		t.Errorf("DisplayName() = %q", got)
	}
}

func TestFailureClassification(t *testing.T) {
	err := Failf(FailBlocked, SourceYouTube, "upstream returned 429")
	wrapped := errors.New("outer: " + err.Error())
	if KindOf(err) != FailBlocked {
		t.Error("KindOf failed on direct failure")
	}
	if KindOf(wrapped) != FailUnknown {
		t.Error("KindOf should not classify plain errors")
	}
	if Retryable(err) {
		t.Error("blocked failures must not be retryable")
	}
	if !Retryable(Failf(FailTimeout, SourceYouTube, "deadline")) {
		t.Error("timeouts should be retryable")
	}
}

func TestLooksBlocked(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"HTTP Error 429: Too Many Requests", true},
		{"please solve the CAPTCHA to continue", true},
		{"Sign in to confirm you're not a bot", true},
		{"video unavailable", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := LooksBlocked(tc.msg); got != tc.want {
			t.Errorf("LooksBlocked(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}
