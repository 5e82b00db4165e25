package telemetry

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.viam.com/test"

	"github.com/gdp03/footrig/logging"
	"github.com/gdp03/footrig/stage"
)

func TestEmitterStamps(t *testing.T) {
	clk := clock.NewMock()
	clk.Add(time.Hour)
	rec := &Recorder{}
	e := NewEmitter(rec, clk)

	e.Force(3, stage.Heel, PhaseSeek, 12, 1.25)
	e.Cycle(3, []stage.Stage{stage.Forefoot, stage.Heel}, map[stage.Stage]int{stage.Forefoot: 42, stage.Heel: 40})
	e.Halt(3, "completed", "")

	events := rec.Events()
	test.That(t, events, test.ShouldHaveLength, 3)
	for _, ev := range events {
		test.That(t, ev.RunID, test.ShouldEqual, e.RunID())
		test.That(t, ev.Time, test.ShouldEqual, clk.Now())
	}
	test.That(t, events[0].Stage, test.ShouldEqual, "heel")
	test.That(t, events[1].StepCounts, test.ShouldResemble, map[string]int{"forefoot": 42, "heel": 40})
	test.That(t, events[1].Recalibrated, test.ShouldResemble, []string{"forefoot", "heel"})
	test.That(t, rec.OfKind(KindHalt)[0].Phase, test.ShouldEqual, PhaseTerminal)
}

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	NewEmitter(Multi{a, b, Discard}, clock.New()).Message(1, stage.Forefoot, "hello")
	test.That(t, a.Events(), test.ShouldHaveLength, 1)
	test.That(t, b.Events(), test.ShouldHaveLength, 1)
}

func TestFormatLine(t *testing.T) {
	test.That(t, FormatLine(Event{Kind: KindForce, Stage: "forefoot", Force: 1.23456, Steps: 7}),
		test.ShouldEqual, "Forefoot force: 1.23 N (step 7)")
	test.That(t, FormatLine(Event{Kind: KindPhase, Cycle: 2, Stage: "heel", Phase: PhaseReplay}),
		test.ShouldEqual, "cycle 2: heel replay")
	counts := map[string]int{"heel": 3, "forefoot": 4}
	test.That(t, FormatLine(Event{Kind: KindCycle, Cycle: 1, Recalibrated: []string{"forefoot", "heel"}, StepCounts: counts}),
		test.ShouldEqual, "cycle 1 complete: forefoot=4 heel=3 (recalibrated)")
	test.That(t, FormatLine(Event{Kind: KindCycle, Cycle: 2, Recalibrated: []string{"heel"}, StepCounts: counts}),
		test.ShouldEqual, "cycle 2 complete: forefoot=4 heel=3 (recalibrated heel)")
	test.That(t, FormatLine(Event{Kind: KindCycle, Cycle: 3, StepCounts: counts}),
		test.ShouldEqual, "cycle 3 complete: forefoot=4 heel=3")
	test.That(t, FormatLine(Event{Kind: KindHalt, Cycle: 1000, Reason: "completed"}),
		test.ShouldEqual, "test stopped after 1000 cycles: completed")
}

func TestTextAndLogSinks(t *testing.T) {
	var buf bytes.Buffer
	logger, logs := logging.NewObservedTestLogger(t)
	e := NewEmitter(Multi{NewTextSink(&buf), LogSink{Logger: logger}}, clock.New())
	e.Force(1, stage.Forefoot, PhaseSeek, 1, 0.5)
	e.Halt(1, "aborted", "context canceled")

	test.That(t, buf.String(), test.ShouldEqual,
		"Forefoot force: 0.500 N (step 1)\ntest stopped after 1 cycles: aborted (context canceled)\n")
	test.That(t, logs.FilterMessage("run halted").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("force").All()[0].ContextMap()["force_n"], test.ShouldEqual, 0.5)
}

func TestHub(t *testing.T) {
	logger := logging.NewTestLogger(t)
	hub := NewHub(logger)
	server := httptest.NewServer(hub)
	defer server.Close()

	e := NewEmitter(hub, clock.New())
	e.Cycle(1, []stage.Stage{stage.Forefoot}, map[stage.Stage]int{stage.Forefoot: 5})

	wsURL := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	test.That(t, err, test.ShouldBeNil)
	defer conn.Close()

	// late joiners get the latest summary first
	var ev Event
	test.That(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)), test.ShouldBeNil)
	test.That(t, conn.ReadJSON(&ev), test.ShouldBeNil)
	test.That(t, ev.Kind, test.ShouldEqual, KindCycle)
	test.That(t, ev.StepCounts["forefoot"], test.ShouldEqual, 5)

	e.Force(2, stage.Heel, PhaseSeek, 3, 0.75)
	test.That(t, conn.ReadJSON(&ev), test.ShouldBeNil)
	test.That(t, ev.Kind, test.ShouldEqual, KindForce)
	test.That(t, ev.Force, test.ShouldEqual, 0.75)
	test.That(t, ev.RunID, test.ShouldEqual, e.RunID())

	hub.Close()
	_, _, err = conn.ReadMessage()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSummary(t *testing.T) {
	sum := NewSummary()
	e := NewEmitter(sum, clock.NewMock())
	test.That(t, sum.Stats(), test.ShouldBeEmpty)

	e.Force(1, stage.Heel, PhaseSeek, 30, 1.6)
	e.Cycle(1, []stage.Stage{stage.Heel}, map[stage.Stage]int{stage.Heel: 30})
	for i, force := range []float64{1.5, 1.7, 1.3, 1.5} {
		e.Force(i+2, stage.Heel, PhaseReplay, 30, force)
		e.Force(i+2, stage.Heel, PhaseReturn, 30, 0.01)
	}
	// only the stages named as re-sought are credited.
	e.Cycle(6, []stage.Stage{stage.Heel}, map[stage.Stage]int{stage.Forefoot: 12, stage.Heel: 31})
	e.Halt(6, "completed", "")

	got := sum.Stats()
	test.That(t, got, test.ShouldHaveLength, 1)
	test.That(t, got[0].Stage, test.ShouldEqual, "heel")
	test.That(t, got[0].Readings, test.ShouldEqual, 4)
	test.That(t, got[0].Recalibrations, test.ShouldEqual, 2)
	test.That(t, got[0].Mean, test.ShouldAlmostEqual, 1.5)
	test.That(t, got[0].Min, test.ShouldEqual, 1.3)
	test.That(t, got[0].Max, test.ShouldEqual, 1.7)
	test.That(t, got[0].StdDev, test.ShouldAlmostEqual, 0.1414, 0.001)
}

func TestEventJSONKeepsZeroMeasurements(t *testing.T) {
	rec := &Recorder{}
	e := NewEmitter(rec, clock.NewMock())
	e.Force(1, stage.Heel, PhaseReturn, 0, 0)

	buf, err := json.Marshal(rec.Events()[0])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(buf), test.ShouldContainSubstring, `"force_n":0`)
	test.That(t, string(buf), test.ShouldContainSubstring, `"steps":0`)
}
