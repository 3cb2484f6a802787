// Package orchestrator is the decision core: it walks the provider fallback
// order for a request, consults both caches, and governs every fetch.
package orchestrator

import (
	"context"

	"radiobot/internal/cache"
	"radiobot/internal/governor"
	"radiobot/internal/logger"
	"radiobot/internal/media"
	"radiobot/internal/provider"
	"radiobot/pkg/utils"
)

// TrackRef is the metadata cache payload: enough to skip the search phase
// on a later request, but not the fetch phase.
type TrackRef struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration int    `json:"duration"`
}

// Request describes one download request.
type Request struct {
	Query     string
	Preferred media.Source
	LongForm  bool
}

// Options tunes selection behavior.
type Options struct {
	LongFormThreshold int      // seconds; above this a candidate counts as long-form
	SearchWindow      int      // candidates per long-form search
	Variants          []string // long-form query suffixes
}

// Orchestrator resolves requests to local audio files.
type Orchestrator struct {
	registry *provider.Registry
	gov      *governor.Governor
	results  *cache.Cache[media.Outcome]
	refs     *cache.Cache[TrackRef]
	opts     Options
	log      *logger.Logger
}

// New creates an orchestrator over the given providers and caches.
func New(registry *provider.Registry, gov *governor.Governor,
	results *cache.Cache[media.Outcome], refs *cache.Cache[TrackRef],
	opts Options, log *logger.Logger) *Orchestrator {

	if opts.LongFormThreshold <= 0 {
		opts.LongFormThreshold = 1800
	}
	if opts.SearchWindow <= 0 {
		opts.SearchWindow = 10
	}
	return &Orchestrator{
		registry: registry,
		gov:      gov,
		results:  results,
		refs:     refs,
		opts:     opts,
		log:      log,
	}
}

// Download resolves a request to a local file, trying each source in the
// fallback order until one succeeds. The caller owns the returned file.
func (o *Orchestrator) Download(ctx context.Context, req Request) (media.Outcome, error) {
	query := media.NormalizeQuery(req.Query)
	if query == "" {
		return media.Outcome{}, media.Failf(media.FailNotFound, req.Preferred, "empty query")
	}
	if req.Preferred == "" {
		req.Preferred = media.SourceYouTube
	}

	var lastErr error
	for _, src := range media.FallbackOrder(req.Preferred, req.LongForm) {
		client, ok := o.registry.Get(src)
		if !ok {
			continue
		}

		if out, ok := o.cachedResult(src, query); ok {
			o.log.Info("Serving %q from result cache (%s)", query, src)
			return out, nil
		}

		out, err := o.trySource(ctx, client, src, query, req.LongForm)
		if err != nil {
			lastErr = err
			o.log.Warn("Source %s failed for %q: %v", src, query, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		o.tag(out)
		o.results.Put(src.String(), query, out)
		o.log.Info("Downloaded %q via %s: %s", query, src, out.Meta.DisplayName())
		return out, nil
	}

	if lastErr == nil {
		lastErr = media.Failf(media.FailNotFound, req.Preferred, "no provider available for %q", query)
	}
	return media.Outcome{}, lastErr
}

// Search returns up to limit candidates from one source without fetching
// any of them. Callers stash the list and fetch a pick later by identifier.
func (o *Orchestrator) Search(ctx context.Context, src media.Source, query string, limit int) ([]media.Candidate, error) {
	query = media.NormalizeQuery(query)
	if query == "" {
		return nil, media.Failf(media.FailNotFound, src, "empty query")
	}
	client, ok := o.registry.Get(src)
	if !ok {
		return nil, media.Failf(media.FailNotFound, src, "source %s is not configured", src)
	}
	if limit < 1 {
		limit = o.opts.SearchWindow
	}
	return client.Search(ctx, query, limit)
}

// cachedResult returns a fresh cached outcome whose file is still on disk.
// A vanished file reads as a miss, never as a corrupt hit.
func (o *Orchestrator) cachedResult(src media.Source, query string) (media.Outcome, bool) {
	out, ok := o.results.Get(src.String(), query)
	if !ok {
		return media.Outcome{}, false
	}
	if err := utils.ValidateFile(out.FilePath, 1); err != nil {
		return media.Outcome{}, false
	}
	return out, true
}

// trySource runs the per-source flow: id short-circuit, then at most one
// cached-identifier fetch, then a fresh search.
func (o *Orchestrator) trySource(ctx context.Context, client provider.Client,
	src media.Source, query string, longForm bool) (media.Outcome, error) {

	if src.MatchesID(query) {
		return o.fetch(ctx, client, src, query, media.Candidate{ID: query, Source: src})
	}

	if ref, ok := o.refs.Get(src.String(), query); ok {
		out, err := o.fetch(ctx, client, src, query, media.Candidate{
			ID:       ref.ID,
			Title:    ref.Title,
			Artist:   ref.Artist,
			Duration: ref.Duration,
			Source:   src,
		})
		if err == nil {
			o.refs.MarkResult(src.String(), query, true)
			return out, nil
		}
		o.refs.MarkResult(src.String(), query, false)
		if media.KindOf(err) == media.FailBlocked {
			return media.Outcome{}, err
		}
		o.log.Debug("Cached identifier %s went stale for %q, searching fresh", ref.ID, query)
	}

	cand, err := o.pick(ctx, client, src, query, longForm)
	if err != nil {
		return media.Outcome{}, err
	}
	return o.fetch(ctx, client, src, query, cand)
}

// pick selects the candidate to fetch for a query.
func (o *Orchestrator) pick(ctx context.Context, client provider.Client,
	src media.Source, query string, longForm bool) (media.Candidate, error) {

	if !longForm {
		cands, err := client.Search(ctx, query, 1)
		if err != nil {
			return media.Candidate{}, err
		}
		return cands[0], nil
	}

	// Long-form: widen the net with query variants, then pick by duration.
	variants := []string{query}
	for _, suffix := range o.opts.Variants {
		variants = append(variants, query+" "+suffix)
	}

	seen := make(map[string]bool)
	var all []media.Candidate
	var lastErr error
	for _, v := range variants {
		cands, err := client.Search(ctx, v, o.opts.SearchWindow)
		if err != nil {
			if media.KindOf(err) == media.FailBlocked {
				return media.Candidate{}, err
			}
			lastErr = err
			continue
		}
		for _, c := range cands {
			if !seen[c.ID] {
				seen[c.ID] = true
				all = append(all, c)
			}
		}
	}
	if len(all) == 0 {
		if lastErr != nil {
			return media.Candidate{}, lastErr
		}
		return media.Candidate{}, media.Failf(media.FailNotFound, src, "no long-form candidates for %q", query)
	}
	return selectLongForm(all, o.opts.LongFormThreshold), nil
}

// selectLongForm picks the longest candidate above the threshold, or the
// longest available one when none qualifies.
func selectLongForm(cands []media.Candidate, threshold int) media.Candidate {
	best := cands[0]
	bestQualifies := best.Duration > threshold
	for _, c := range cands[1:] {
		qualifies := c.Duration > threshold
		switch {
		case qualifies && !bestQualifies:
			best, bestQualifies = c, true
		case qualifies == bestQualifies && c.Duration > best.Duration:
			best = c
		}
	}
	return best
}

// PickFunc selects one candidate from a search window, or reports that none
// is eligible.
type PickFunc func([]media.Candidate) (media.Candidate, bool)

// DownloadWith resolves a request like Download, but hands candidate
// selection to pick over a wider search window and bypasses both caches.
// Callers using it want variety, not replay.
func (o *Orchestrator) DownloadWith(ctx context.Context, req Request, window int, pick PickFunc) (media.Outcome, error) {
	query := media.NormalizeQuery(req.Query)
	if query == "" {
		return media.Outcome{}, media.Failf(media.FailNotFound, req.Preferred, "empty query")
	}
	if req.Preferred == "" {
		req.Preferred = media.SourceYouTube
	}
	if window < 1 {
		window = o.opts.SearchWindow
	}

	var lastErr error
	for _, src := range media.FallbackOrder(req.Preferred, req.LongForm) {
		client, ok := o.registry.Get(src)
		if !ok {
			continue
		}

		cands, err := client.Search(ctx, query, window)
		if err != nil {
			lastErr = err
			o.log.Warn("Source %s search failed for %q: %v", src, query, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		cand, ok := pick(cands)
		if !ok {
			lastErr = media.Failf(media.FailNotFound, src, "no eligible candidate for %q", query)
			continue
		}

		out, err := governor.Run(ctx, o.gov, src.String()+" fetch", func(ctx context.Context) (media.Outcome, error) {
			return client.Fetch(ctx, cand)
		})
		if err != nil {
			lastErr = err
			o.log.Warn("Source %s fetch failed for %q: %v", src, query, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		o.tag(out)
		return out, nil
	}

	if lastErr == nil {
		lastErr = media.Failf(media.FailNotFound, req.Preferred, "no provider available for %q", query)
	}
	return media.Outcome{}, lastErr
}

// fetch runs a governed download and records the identifier for later
// search skipping.
func (o *Orchestrator) fetch(ctx context.Context, client provider.Client,
	src media.Source, query string, cand media.Candidate) (media.Outcome, error) {

	out, err := governor.Run(ctx, o.gov, src.String()+" fetch", func(ctx context.Context) (media.Outcome, error) {
		return client.Fetch(ctx, cand)
	})
	if err != nil {
		return media.Outcome{}, err
	}

	if cand.ID != "" && cand.ID != query {
		o.refs.Put(src.String(), query, TrackRef{
			ID:       cand.ID,
			Title:    out.Meta.Title,
			Artist:   out.Meta.Artist,
			Duration: out.Meta.Duration,
		})
	}
	return out, nil
}
