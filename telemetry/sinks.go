package telemetry

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/gdp03/footrig/logging"
	"github.com/gdp03/footrig/utils"
)

// LogSink writes events as structured log lines. Force readings go to debug.
type LogSink struct {
	Logger logging.Logger
}

// Publish implements Sink.
func (s LogSink) Publish(ev Event) {
	switch ev.Kind {
	case KindForce:
		s.Logger.Debugw("force", "cycle", ev.Cycle, "stage", ev.Stage, "phase", ev.Phase, "steps", ev.Steps, "force_n", ev.Force)
	case KindPhase:
		s.Logger.Debugw("phase", "cycle", ev.Cycle, "stage", ev.Stage, "phase", ev.Phase)
	case KindCycle:
		s.Logger.Infow("cycle complete", "cycle", ev.Cycle, "recalibrated", ev.Recalibrated, "step_counts", ev.StepCounts)
	case KindHalt:
		s.Logger.Infow("run halted", "cycle", ev.Cycle, "reason", ev.Reason, "message", ev.Message)
	case KindMessage:
		s.Logger.Infow(ev.Message, "cycle", ev.Cycle, "stage", ev.Stage)
	}
}

// TextSink writes operator readable lines, one per event, to a console.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextSink returns a sink writing to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// Publish implements Sink.
func (s *TextSink) Publish(ev Event) {
	line := FormatLine(ev)
	if line == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	//nolint:errcheck
	fmt.Fprintln(s.w, line)
}

// FormatLine renders an event for the operator console; forces are shown to
// three significant figures.
func FormatLine(ev Event) string {
	switch ev.Kind {
	case KindForce:
		return fmt.Sprintf("%s force: %s N (step %d)", titleCase(ev.Stage), utils.FormatSigFigs(ev.Force, 3), ev.Steps)
	case KindPhase:
		if ev.Stage == "" {
			return fmt.Sprintf("cycle %d: %s", ev.Cycle, ev.Phase)
		}
		return fmt.Sprintf("cycle %d: %s %s", ev.Cycle, ev.Stage, ev.Phase)
	case KindCycle:
		names := make([]string, 0, len(ev.StepCounts))
		for name := range ev.StepCounts {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%d", name, ev.StepCounts[name]))
		}
		suffix := ""
		switch {
		case len(ev.Recalibrated) == 0:
		case len(ev.Recalibrated) == len(ev.StepCounts):
			suffix = " (recalibrated)"
		default:
			suffix = " (recalibrated " + strings.Join(ev.Recalibrated, ", ") + ")"
		}
		return fmt.Sprintf("cycle %d complete: %s%s", ev.Cycle, strings.Join(parts, " "), suffix)
	case KindHalt:
		if ev.Message == "" {
			return fmt.Sprintf("test stopped after %d cycles: %s", ev.Cycle, ev.Reason)
		}
		return fmt.Sprintf("test stopped after %d cycles: %s (%s)", ev.Cycle, ev.Reason, ev.Message)
	case KindMessage:
		return ev.Message
	}
	return ""
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
