// Package state holds the in-memory runtime state, split into three lock
// partitions (general, radio, voting). Each field is only ever touched under
// its own partition's lock.
package state

import (
	"errors"
	"sync"
	"time"

	"radiobot/internal/media"
)

var (
	ErrNoSuchResult  = errors.New("no stashed result at that position")
	ErrNoActivePoll  = errors.New("no active poll")
	ErrPollActive    = errors.New("a poll is already active")
	ErrUnknownOption = errors.New("unknown poll option")
)

// State is the root of all runtime state.
type State struct {
	General General
	Radio   Radio
	Voting  Voting
}

// New builds an empty state with the uptime clock started.
func New() *State {
	s := &State{}
	s.General.startedAt = time.Now()
	s.General.searchResults = make(map[string][]media.Candidate)
	return s
}

// NowPlaying describes the track currently being delivered.
type NowPlaying struct {
	Meta      media.TrackMetadata
	StartedAt time.Time
}

// General covers the state shared by all request flows.
type General struct {
	mu            sync.RWMutex
	startedAt     time.Time
	preferred     media.Source
	nowPlaying    *NowPlaying
	lastError     string
	searchResults map[string][]media.Candidate
}

func (g *General) SetPreferred(src media.Source) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.preferred = src
}

func (g *General) Preferred() media.Source {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.preferred == "" {
		return media.SourceYouTube
	}
	return g.preferred
}

func (g *General) SetNowPlaying(meta media.TrackMetadata) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nowPlaying = &NowPlaying{Meta: meta, StartedAt: time.Now()}
}

func (g *General) ClearNowPlaying() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nowPlaying = nil
}

func (g *General) NowPlaying() (NowPlaying, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.nowPlaying == nil {
		return NowPlaying{}, false
	}
	return *g.nowPlaying, true
}

func (g *General) SetLastError(msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastError = msg
}

func (g *General) LastError() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastError
}

func (g *General) Uptime() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return time.Since(g.startedAt)
}

// StashResults keeps a requester's search results for a later pick-by-number.
// A new stash replaces any previous one for the same requester.
func (g *General) StashResults(requester string, cands []media.Candidate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.searchResults[requester] = cands
}

// TakeResult pops the n-th (1-based) stashed result and drops the stash.
func (g *General) TakeResult(requester string, n int) (media.Candidate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cands := g.searchResults[requester]
	if n < 1 || n > len(cands) {
		return media.Candidate{}, ErrNoSuchResult
	}
	delete(g.searchResults, requester)
	return cands[n-1], nil
}

// Radio covers the autonomous loop's state.
type Radio struct {
	mu      sync.RWMutex
	running bool
	genre   string
}

func (r *Radio) SetRunning(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = on
}

func (r *Radio) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

func (r *Radio) SetGenre(genre string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.genre = genre
}

func (r *Radio) Genre() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.genre
}

// Voting covers genre poll bookkeeping. Poll rendering lives outside the
// core; this partition only counts.
type Voting struct {
	mu     sync.Mutex
	pollID string
	counts map[string]int
}

// Open starts a poll over the given options. Only one poll runs at a time.
func (v *Voting) Open(pollID string, options []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pollID != "" {
		return ErrPollActive
	}
	v.pollID = pollID
	v.counts = make(map[string]int, len(options))
	for _, opt := range options {
		v.counts[opt] = 0
	}
	return nil
}

// Vote counts one vote for an option of the active poll.
func (v *Voting) Vote(option string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pollID == "" {
		return ErrNoActivePoll
	}
	if _, ok := v.counts[option]; !ok {
		return ErrUnknownOption
	}
	v.counts[option]++
	return nil
}

// Close ends the active poll and returns the winning option.
func (v *Voting) Close() (string, map[string]int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pollID == "" {
		return "", nil, ErrNoActivePoll
	}

	winner := ""
	best := -1
	for opt, n := range v.counts {
		if n > best || (n == best && opt < winner) {
			winner, best = opt, n
		}
	}
	counts := v.counts
	v.pollID = ""
	v.counts = nil
	return winner, counts, nil
}

// Active returns the running poll's id and a copy of its counts.
func (v *Voting) Active() (string, map[string]int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pollID == "" {
		return "", nil, false
	}
	counts := make(map[string]int, len(v.counts))
	for opt, n := range v.counts {
		counts[opt] = n
	}
	return v.pollID, counts, true
}

// Snapshot is a point-in-time view of all partitions for the status surface.
type Snapshot struct {
	UptimeSec  int64         `json:"uptime_seconds"`
	Preferred  media.Source  `json:"preferred_source"`
	NowPlaying *NowPlaying   `json:"now_playing,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
	Radio      RadioSnapshot `json:"radio"`
	Poll       *PollSnapshot `json:"poll,omitempty"`
}

type RadioSnapshot struct {
	Running bool   `json:"running"`
	Genre   string `json:"genre,omitempty"`
}

type PollSnapshot struct {
	ID     string         `json:"id"`
	Counts map[string]int `json:"counts"`
}

// Snapshot assembles a consistent-enough view for status reporting. Each
// partition is read under its own lock; cross-partition skew is acceptable.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		UptimeSec: int64(s.General.Uptime().Seconds()),
		Preferred: s.General.Preferred(),
		LastError: s.General.LastError(),
		Radio: RadioSnapshot{
			Running: s.Radio.Running(),
			Genre:   s.Radio.Genre(),
		},
	}
	if np, ok := s.General.NowPlaying(); ok {
		snap.NowPlaying = &np
	}
	if id, counts, ok := s.Voting.Active(); ok {
		snap.Poll = &PollSnapshot{ID: id, Counts: counts}
	}
	return snap
}
