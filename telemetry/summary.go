package telemetry

import (
	"sync"

	"github.com/montanaflynn/stats"

	"github.com/gdp03/footrig/stage"
)

// StageStats describes the force held at a stage's loaded position over the
// open-loop replays of a run, where drift shows specimen creep or wear.
type StageStats struct {
	Stage    string
	Readings int
	Mean     float64
	StdDev   float64
	Min      float64
	Max      float64
	// Recalibrations is how many cycles re-derived the stage's step count.
	Recalibrations int
}

// Summary is a Sink that accumulates StageStats.
type Summary struct {
	mu       sync.Mutex
	loaded   map[string][]float64
	recalibs map[string]int
}

// NewSummary returns an empty summary.
func NewSummary() *Summary {
	return &Summary{loaded: map[string][]float64{}, recalibs: map[string]int{}}
}

// Publish implements Sink.
func (s *Summary) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Kind {
	case KindForce:
		if ev.Phase == PhaseReplay {
			s.loaded[ev.Stage] = append(s.loaded[ev.Stage], ev.Force)
		}
	case KindCycle:
		for _, name := range ev.Recalibrated {
			s.recalibs[name]++
		}
	case KindPhase, KindHalt, KindMessage:
	}
}

// Stats returns one entry per stage seen, in cycle order.
func (s *Summary) Stats() []StageStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StageStats
	for _, st := range stage.All() {
		name := st.String()
		readings := s.loaded[name]
		if len(readings) == 0 && s.recalibs[name] == 0 {
			continue
		}
		entry := StageStats{Stage: name, Readings: len(readings), Recalibrations: s.recalibs[name]}
		if len(readings) > 0 {
			// errors only occur on empty input.
			entry.Mean, _ = stats.Mean(readings)
			entry.StdDev, _ = stats.StandardDeviation(readings)
			entry.Min, _ = stats.Min(readings)
			entry.Max, _ = stats.Max(readings)
		}
		out = append(out, entry)
	}
	return out
}
