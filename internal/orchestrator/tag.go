package orchestrator

import (
	"go.senan.xyz/taglib"

	"radiobot/internal/media"
)

// tag writes title/artist tags onto a delivered file so players show
// something better than the raw filename. Tagging failures are logged and
// otherwise ignored.
func (o *Orchestrator) tag(out media.Outcome) {
	tags := make(map[string][]string)
	if out.Meta.Title != "" && out.Meta.Title != "Unknown" {
		tags[taglib.Title] = []string{out.Meta.Title}
	}
	if out.Meta.Artist != "" && out.Meta.Artist != "Unknown" {
		tags[taglib.Artist] = []string{out.Meta.Artist}
	}
	if len(tags) == 0 {
		return
	}
	if err := taglib.WriteTags(out.FilePath, tags, 0); err != nil {
		o.log.Debug("Failed to tag %s: %v", out.FilePath, err)
	}
}
