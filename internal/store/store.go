package store

import (
	"sync"
	"time"

	"github.com/padmexporter/padmexporter/internal/padm"
)

// Sample is the latest known observation for one exported series.
// Samples are updated in place by merges and never deleted: a value that
// stops refreshing goes stale, it does not disappear from the exposition.
type Sample struct {
	Target     string
	Device     string
	Definition padm.Definition
	Mode       string
	Info       string
	Value      float64
	UpdatedAt  time.Time
}

// SampleView is a Sample with its staleness computed at snapshot time.
type SampleView struct {
	Sample
	Stale bool
}

// Status is per-target poll health, written by the target's poller.
type Status struct {
	Target              string
	Up                  bool
	ConsecutiveFailures int
	LastError           string
	LastAttempt         time.Time
	LastSuccess         time.Time
}

// Snapshot is a consistent read of the whole store: samples and statuses
// taken under a single lock acquisition.
type Snapshot struct {
	Samples  []SampleView
	Statuses []Status
}

// Store is the concurrency-safe latest-value map shared between pollers
// (one writer per target, disjoint key spaces) and scrape handlers (many
// concurrent readers).
type Store struct {
	mu         sync.RWMutex
	samples    map[seriesKey]Sample
	statuses   map[string]Status
	staleAfter time.Duration
	now        func() time.Time // injectable for deterministic tests
}

type seriesKey struct {
	target string
	device string
	name   string
	mode   string
	info   string
}

// New creates a Store. Samples older than staleAfter are flagged stale in
// snapshots but remain exposed with their last known value.
func New(staleAfter time.Duration) *Store {
	return &Store{
		samples:    make(map[seriesKey]Sample),
		statuses:   make(map[string]Status),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Merge atomically publishes one poll cycle's readings for a target.
// Series present in the cycle are overwritten with fresh timestamps; series
// absent from it keep their previous value and age toward staleness.
func (s *Store) Merge(target string, readings []padm.Reading, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range readings {
		key := seriesKey{
			target: target,
			device: r.Device,
			name:   r.Definition.Name,
			mode:   r.Mode,
			info:   r.Info,
		}
		s.samples[key] = Sample{
			Target:     target,
			Device:     r.Device,
			Definition: r.Definition,
			Mode:       r.Mode,
			Info:       r.Info,
			Value:      r.Value,
			UpdatedAt:  at,
		}
	}
}

// SetStatus records the outcome of one poll cycle. A nil err marks the
// target up and resets the consecutive-failure count.
func (s *Store) SetStatus(target string, err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.statuses[target]
	st.Target = target
	st.LastAttempt = at
	if err == nil {
		st.Up = true
		st.ConsecutiveFailures = 0
		st.LastError = ""
		st.LastSuccess = at
	} else {
		st.Up = false
		st.ConsecutiveFailures++
		st.LastError = err.Error()
	}
	s.statuses[target] = st
}

// Snapshot returns copies of every sample and status. Readers never see a
// cycle mid-merge: the whole pre-merge or whole post-merge state, never an
// interleaving.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-s.staleAfter)
	snap := Snapshot{
		Samples:  make([]SampleView, 0, len(s.samples)),
		Statuses: make([]Status, 0, len(s.statuses)),
	}
	for _, sample := range s.samples {
		snap.Samples = append(snap.Samples, SampleView{
			Sample: sample,
			Stale:  !sample.UpdatedAt.After(cutoff),
		})
	}
	for _, st := range s.statuses {
		snap.Statuses = append(snap.Statuses, st)
	}
	return snap
}
