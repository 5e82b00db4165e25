// Package telemetry carries the rig's live status stream: force readings,
// phase transitions, cycle summaries and the reason a run stopped.
package telemetry

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/gdp03/footrig/stage"
)

// Kind says which fields of an Event are meaningful.
type Kind string

const (
	KindForce   Kind = "force"
	KindPhase   Kind = "phase"
	KindCycle   Kind = "cycle"
	KindHalt    Kind = "halt"
	KindMessage Kind = "message"
)

// Phase is a state of the cycle state machine.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseSeek     Phase = "seek"
	PhaseReturn   Phase = "return"
	PhaseReplay   Phase = "replay"
	PhaseTerminal Phase = "terminal"
)

// Event is one item on the status stream.
type Event struct {
	RunID uuid.UUID `json:"run_id"`
	Time  time.Time `json:"time"`
	Kind  Kind      `json:"kind"`
	Cycle int       `json:"cycle"`

	Stage string `json:"stage,omitempty"`
	Phase Phase  `json:"phase,omitempty"`
	// Force is in newtons; set on force events.
	Force float64 `json:"force_n"`
	// Steps is the increments taken so far on force events, and the increments
	// commanded for a stage on cycle events.
	Steps int `json:"steps"`
	// StepCounts maps stage name to its memoized increment count on cycle events.
	StepCounts map[string]int `json:"step_counts,omitempty"`
	// Recalibrated names the stages that re-derived their count by seeking
	// during the cycle.
	Recalibrated []string `json:"recalibrated,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	Message      string       `json:"message,omitempty"`
}

// A Sink receives events. Publish must not block the control loop for long.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ev Event)

// Publish calls f(ev).
func (f SinkFunc) Publish(ev Event) {
	f(ev)
}

// Multi fans events out to every sink in order.
type Multi []Sink

// Publish implements Sink.
func (m Multi) Publish(ev Event) {
	lo.ForEach(m, func(s Sink, _ int) {
		s.Publish(ev)
	})
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Emitter stamps events with a run identifier and the time before passing them on.
type Emitter struct {
	runID uuid.UUID
	clk   clock.Clock
	sink  Sink
}

// NewEmitter returns an emitter for a new run.
func NewEmitter(sink Sink, clk clock.Clock) *Emitter {
	if sink == nil {
		sink = Discard
	}
	return &Emitter{runID: uuid.New(), clk: clk, sink: sink}
}

// RunID identifies the run this emitter stamps.
func (e *Emitter) RunID() uuid.UUID {
	return e.runID
}

func (e *Emitter) emit(ev Event) {
	ev.RunID = e.runID
	ev.Time = e.clk.Now()
	e.sink.Publish(ev)
}

// Force publishes a load cell reading taken after steps increments.
func (e *Emitter) Force(cycle int, s stage.Stage, phase Phase, steps int, force float64) {
	e.emit(Event{Kind: KindForce, Cycle: cycle, Stage: s.String(), Phase: phase, Steps: steps, Force: force})
}

// Phase publishes a state machine transition. Stage may be omitted for
// rig-wide phases by passing ok false.
func (e *Emitter) Phase(cycle int, s stage.Stage, ok bool, phase Phase) {
	ev := Event{Kind: KindPhase, Cycle: cycle, Phase: phase}
	if ok {
		ev.Stage = s.String()
	}
	e.emit(ev)
}

// Cycle publishes the summary of a completed cycle.
func (e *Emitter) Cycle(cycle int, recalibrated []stage.Stage, stepCounts map[stage.Stage]int) {
	counts := lo.MapKeys(stepCounts, func(_ int, s stage.Stage) string { return s.String() })
	var names []string
	if len(recalibrated) > 0 {
		names = lo.Map(recalibrated, func(s stage.Stage, _ int) string { return s.String() })
	}
	e.emit(Event{Kind: KindCycle, Cycle: cycle, Recalibrated: names, StepCounts: counts})
}

// Halt publishes the terminal reason of a run.
func (e *Emitter) Halt(cycle int, reason, message string) {
	e.emit(Event{Kind: KindHalt, Cycle: cycle, Phase: PhaseTerminal, Reason: reason, Message: message})
}

// Message publishes free text for the operator.
func (e *Emitter) Message(cycle int, s stage.Stage, message string) {
	e.emit(Event{Kind: KindMessage, Cycle: cycle, Stage: s.String(), Message: message})
}

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Sink.
func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfKind returns the recorded events of one kind.
func (r *Recorder) OfKind(kind Kind) []Event {
	return lo.Filter(r.Events(), func(ev Event, _ int) bool { return ev.Kind == kind })
}
