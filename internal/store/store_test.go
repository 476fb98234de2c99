package store

import (
	"sync"
	"testing"
	"time"

	"github.com/padmexporter/padmexporter/internal/padm"
)

// baseTime is a fixed reference point so all test timings are deterministic.
var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

var tempDef = padm.Definition{
	Label: "Temperature (C)",
	Name:  "padm_temperature_celsius",
	Help:  "Ambient temperature.",
	Kind:  padm.Gauge,
}

func reading(device string, value float64) padm.Reading {
	return padm.Reading{Device: device, Definition: tempDef, Value: value}
}

// pinned returns a store whose clock always reads now.
func pinned(staleAfter time.Duration, now time.Time) *Store {
	s := New(staleAfter)
	s.now = func() time.Time { return now }
	return s
}

func TestStore_MergeAndSnapshot(t *testing.T) {
	s := pinned(90*time.Second, baseTime)

	s.Merge("lab", []padm.Reading{reading("CRAC-1", 21.5), reading("CRAC-2", 19.0)}, baseTime)

	snap := s.Snapshot()
	if len(snap.Samples) != 2 {
		t.Fatalf("samples: got %d, want 2", len(snap.Samples))
	}
	for _, sv := range snap.Samples {
		if sv.Stale {
			t.Errorf("fresh sample %s flagged stale", sv.Device)
		}
		if sv.Target != "lab" {
			t.Errorf("target = %q, want lab", sv.Target)
		}
	}
}

func TestStore_MergeOverwritesLatestValue(t *testing.T) {
	s := pinned(90*time.Second, baseTime)

	s.Merge("lab", []padm.Reading{reading("CRAC-1", 21.5)}, baseTime)
	s.Merge("lab", []padm.Reading{reading("CRAC-1", 22.1)}, baseTime.Add(30*time.Second))

	snap := s.Snapshot()
	if len(snap.Samples) != 1 {
		t.Fatalf("samples: got %d, want 1 (same series)", len(snap.Samples))
	}
	if got := snap.Samples[0].Value; got != 22.1 {
		t.Errorf("value = %v, want the most recent 22.1", got)
	}
}

func TestStore_StaleAfterThreshold(t *testing.T) {
	s := New(90 * time.Second)
	s.Merge("lab", []padm.Reading{reading("CRAC-1", 21.5)}, baseTime)

	// 60s later: fresh.
	s.now = func() time.Time { return baseTime.Add(60 * time.Second) }
	if snap := s.Snapshot(); snap.Samples[0].Stale {
		t.Error("sample stale at 60s with 90s threshold")
	}

	// 2 minutes later: stale, but still present with its last value.
	s.now = func() time.Time { return baseTime.Add(2 * time.Minute) }
	snap := s.Snapshot()
	if len(snap.Samples) != 1 {
		t.Fatalf("stale sample was dropped: got %d samples", len(snap.Samples))
	}
	if !snap.Samples[0].Stale {
		t.Error("sample not flagged stale at 2m with 90s threshold")
	}
	if snap.Samples[0].Value != 21.5 {
		t.Errorf("stale value = %v, want last-known 21.5", snap.Samples[0].Value)
	}
}

func TestStore_AbsentSeriesAgesTowardStaleness(t *testing.T) {
	s := New(90 * time.Second)
	s.Merge("lab", []padm.Reading{reading("CRAC-1", 21.5), reading("CRAC-2", 19.0)}, baseTime)

	// Next cycle only reports CRAC-1; CRAC-2 keeps its old timestamp.
	later := baseTime.Add(2 * time.Minute)
	s.Merge("lab", []padm.Reading{reading("CRAC-1", 21.7)}, later)

	s.now = func() time.Time { return later }
	snap := s.Snapshot()
	byDevice := make(map[string]SampleView)
	for _, sv := range snap.Samples {
		byDevice[sv.Device] = sv
	}
	if byDevice["CRAC-1"].Stale {
		t.Error("refreshed series flagged stale")
	}
	if !byDevice["CRAC-2"].Stale {
		t.Error("unrefreshed series not flagged stale")
	}
	if byDevice["CRAC-2"].Value != 19.0 {
		t.Errorf("unrefreshed value = %v, want last-known 19.0", byDevice["CRAC-2"].Value)
	}
}

func TestStore_SetStatus(t *testing.T) {
	s := pinned(90*time.Second, baseTime)

	s.SetStatus("lab", assertErr("boom"), baseTime)
	s.SetStatus("lab", assertErr("boom again"), baseTime.Add(30*time.Second))

	snap := s.Snapshot()
	if len(snap.Statuses) != 1 {
		t.Fatalf("statuses: got %d, want 1", len(snap.Statuses))
	}
	st := snap.Statuses[0]
	if st.Up {
		t.Error("target up after failures")
	}
	if st.ConsecutiveFailures != 2 {
		t.Errorf("consecutive failures = %d, want 2", st.ConsecutiveFailures)
	}
	if st.LastError != "boom again" {
		t.Errorf("last error = %q", st.LastError)
	}

	ok := baseTime.Add(time.Minute)
	s.SetStatus("lab", nil, ok)
	st = s.Snapshot().Statuses[0]
	if !st.Up || st.ConsecutiveFailures != 0 || st.LastError != "" {
		t.Errorf("status after success = %+v, want reset", st)
	}
	if !st.LastSuccess.Equal(ok) {
		t.Errorf("last success = %v, want %v", st.LastSuccess, ok)
	}
}

// TestStore_SnapshotConsistency merges cycles where every sample shares the
// cycle's value and timestamp, while a concurrent reader asserts it never
// sees a snapshot mixing two cycles.
func TestStore_SnapshotConsistency(t *testing.T) {
	s := New(time.Hour)

	const cycles = 500
	devices := []string{"CRAC-1", "CRAC-2", "CRAC-3", "CRAC-4"}

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			snap := s.Snapshot()
			if len(snap.Samples) == 0 {
				continue
			}
			want := snap.Samples[0].Value
			wantAt := snap.Samples[0].UpdatedAt
			for _, sv := range snap.Samples {
				if sv.Value != want || !sv.UpdatedAt.Equal(wantAt) {
					t.Errorf("torn snapshot: value/timestamp from different cycles (%v@%v vs %v@%v)",
						sv.Value, sv.UpdatedAt, want, wantAt)
					return
				}
			}
		}
	}()

	for i := 1; i <= cycles; i++ {
		readings := make([]padm.Reading, 0, len(devices))
		for _, d := range devices {
			readings = append(readings, reading(d, float64(i)))
		}
		s.Merge("lab", readings, baseTime.Add(time.Duration(i)*time.Second))
	}
	close(done)
	wg.Wait()
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
