// Package radio runs the autonomous playback loop: each cycle picks a genre,
// finds a track, delivers it to every subscribed destination, and waits for
// a cooldown or a skip signal.
package radio

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"radiobot/internal/lastfm"
	"radiobot/internal/logger"
	"radiobot/internal/media"
	"radiobot/internal/orchestrator"
	"radiobot/internal/state"
	"radiobot/pkg/utils"
)

// rotateChance is the per-cycle probability of switching to a new genre.
const rotateChance = 0.2

// Destination receives a delivered track. The file is only guaranteed to
// exist for the duration of the call.
type Destination interface {
	Deliver(ctx context.Context, filePath string, meta media.TrackMetadata) error
}

// Options tunes the loop.
type Options struct {
	Genres      []string
	Cooldown    time.Duration
	MinDuration int // seconds; shorter candidates (clips, teasers) never play
	MaxDuration int // seconds; candidates above this never play
	HistorySize int
	SearchLimit int
}

// Scheduler is the radio loop.
type Scheduler struct {
	orch *orchestrator.Orchestrator
	fm   *lastfm.Client
	st   *state.State
	opts Options
	log  *logger.Logger

	mu    sync.Mutex
	dests map[string]Destination

	skip    chan struct{}
	history *history
	rng     *rand.Rand
}

// New creates a stopped scheduler.
func New(orch *orchestrator.Orchestrator, fm *lastfm.Client, st *state.State,
	opts Options, log *logger.Logger) *Scheduler {

	if opts.Cooldown <= 0 {
		opts.Cooldown = time.Minute
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 600
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 200
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 10
	}
	if len(opts.Genres) == 0 {
		opts.Genres = []string{"pop", "rock", "jazz"}
	}
	return &Scheduler{
		orch:    orch,
		fm:      fm,
		st:      st,
		opts:    opts,
		log:     log,
		dests:   make(map[string]Destination),
		skip:    make(chan struct{}, 1),
		history: newHistory(opts.HistorySize),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Subscribe registers a delivery destination under an id. Re-subscribing an
// id replaces the old destination.
func (s *Scheduler) Subscribe(id string, d Destination) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dests[id] = d
}

// Unsubscribe removes a destination.
func (s *Scheduler) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dests, id)
}

// Skip interrupts the current cooldown wait. Signals arriving while no wait
// is in progress collapse into one.
func (s *Scheduler) Skip() {
	select {
	case s.skip <- struct{}{}:
	default:
	}
}

// Run drives the loop until ctx is canceled. A failed cycle skips to the
// next tick; the loop itself never stops on its own.
func (s *Scheduler) Run(ctx context.Context) {
	s.st.Radio.SetRunning(true)
	defer s.st.Radio.SetRunning(false)
	defer s.st.General.ClearNowPlaying()

	s.log.Info("Radio loop started")
	for {
		if err := ctx.Err(); err != nil {
			s.log.Info("Radio loop stopped")
			return
		}

		if s.destinationCount() == 0 {
			if !s.wait(ctx, s.opts.Cooldown) {
				return
			}
			continue
		}

		if err := s.cycle(ctx); err != nil {
			s.log.Warn("Radio cycle failed: %v", err)
			s.st.General.SetLastError(err.Error())
		}

		if !s.wait(ctx, s.opts.Cooldown) {
			s.log.Info("Radio loop stopped")
			return
		}
	}
}

// cycle finds and delivers one track. The fetched file is deleted on every
// exit path.
func (s *Scheduler) cycle(ctx context.Context) error {
	genre := s.pickGenre()
	query := s.buildQuery(ctx, genre)
	s.log.Debug("Radio cycle: genre=%q query=%q", genre, query)

	out, err := s.orch.DownloadWith(ctx, orchestrator.Request{
		Query:     query,
		Preferred: s.st.General.Preferred(),
	}, s.opts.SearchLimit, s.pickCandidate)
	if err != nil {
		return err
	}
	defer utils.RemoveQuietly(out.FilePath)

	s.st.General.SetNowPlaying(out.Meta)
	s.deliver(ctx, out)
	return nil
}

func (s *Scheduler) deliver(ctx context.Context, out media.Outcome) {
	s.mu.Lock()
	dests := make(map[string]Destination, len(s.dests))
	for id, d := range s.dests {
		dests[id] = d
	}
	s.mu.Unlock()

	for id, d := range dests {
		if err := d.Deliver(ctx, out.FilePath, out.Meta); err != nil {
			s.log.Warn("Delivery to %s failed: %v", id, err)
		}
	}
	s.log.Info("Radio delivered %s to %d destination(s)", out.Meta.DisplayName(), len(dests))
}

// pickGenre keeps the current genre most cycles and occasionally rotates.
func (s *Scheduler) pickGenre() string {
	genre := s.st.Radio.Genre()
	if genre == "" || s.rng.Float64() < rotateChance {
		genre = s.opts.Genres[s.rng.Intn(len(s.opts.Genres))]
		s.st.Radio.SetGenre(genre)
	}
	return genre
}

// buildQuery turns a genre into a concrete search query, preferring a real
// track suggestion over a bare genre keyword.
func (s *Scheduler) buildQuery(ctx context.Context, genre string) string {
	if s.fm != nil && s.fm.Enabled() {
		suggestions, err := s.fm.TopTracks(ctx, genre, 50)
		if err != nil {
			s.log.Debug("Track suggestions unavailable for %q: %v", genre, err)
		} else if len(suggestions) > 0 {
			return suggestions[s.rng.Intn(len(suggestions))]
		}
	}
	return fmt.Sprintf("%s music", genre)
}

// pickCandidate filters a search window to playable, not-recently-played
// tracks and picks uniformly among the survivors. When the played history
// alone starves the selection, the history is cleared rather than the cycle
// going silent forever.
func (s *Scheduler) pickCandidate(cands []media.Candidate) (media.Candidate, bool) {
	inCap := cands[:0:0]
	for _, c := range cands {
		if c.Duration >= s.opts.MinDuration && c.Duration <= s.opts.MaxDuration && c.Duration > 0 {
			inCap = append(inCap, c)
		}
	}
	if len(inCap) == 0 {
		return media.Candidate{}, false
	}

	fresh := inCap[:0:0]
	for _, c := range inCap {
		if !s.history.contains(c.ID) {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		s.log.Debug("Played history starved selection, clearing it")
		s.history.clear()
		fresh = inCap
	}

	chosen := fresh[s.rng.Intn(len(fresh))]
	s.history.add(chosen.ID)
	return chosen, true
}

func (s *Scheduler) destinationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dests)
}

// wait sleeps for the cooldown or until a skip signal, whichever comes
// first. Returns false when ctx ended.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-s.skip:
		s.log.Debug("Cooldown skipped")
		return true
	case <-timer.C:
		return true
	}
}
