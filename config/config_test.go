package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/gdp03/footrig/services/cycletest"
	"github.com/gdp03/footrig/stage"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	test.That(t, cfg.EnabledStages(), test.ShouldResemble, []stage.Stage{stage.Forefoot, stage.Heel})

	p := cfg.Params()
	test.That(t, p.TargetForce, test.ShouldEqual, 1.5)
	test.That(t, p.MaxCycles, test.ShouldEqual, 1000)
	test.That(t, p.RecalibrationInterval, test.ShouldEqual, 1001)
	test.That(t, p.MaxSeekSteps, test.ShouldEqual, 10000)
	test.That(t, p.PulsesPerStep, test.ShouldEqual, uint(800))
	test.That(t, p.FastHalfPeriod, test.ShouldEqual, 300*time.Microsecond)
	test.That(t, p.SlowHalfPeriod, test.ShouldEqual, time.Millisecond)
	test.That(t, p.Dwell, test.ShouldEqual, 200*time.Millisecond)
	test.That(t, p.FaultPolicy, test.ShouldEqual, cycletest.FaultHalt)
	test.That(t, p.Validate(), test.ShouldBeNil)
	test.That(t, cfg.Countdown(), test.ShouldEqual, 10*time.Second)

	test.That(t, cfg.Stage(stage.Heel).Stepper.Pins.Direction, test.ShouldEqual, "37")
	test.That(t, cfg.Stage(stage.Forefoot).LoadCell.ClockPin, test.ShouldEqual, "5")
	test.That(t, cfg.StaticScaleFactors(), test.ShouldBeEmpty)
}

func TestFromReaderKeepsDefaults(t *testing.T) {
	cfg, err := FromReader("inline", strings.NewReader(`{
		"test": {"max_cycles": 20, "fault_policy": "skip_stage"},
		"heel": {"enabled": false},
		"forefoot": {"scale_factor": 412.5}
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, "inline")
	test.That(t, cfg.Test.MaxCycles, test.ShouldEqual, 20)
	test.That(t, cfg.Test.TargetForce, test.ShouldEqual, 1.5)
	test.That(t, cfg.Test.FaultPolicy, test.ShouldEqual, cycletest.FaultSkipStage)
	test.That(t, cfg.EnabledStages(), test.ShouldResemble, []stage.Stage{stage.Forefoot})
	test.That(t, cfg.Params().Stages, test.ShouldResemble, []stage.Stage{stage.Forefoot})
	test.That(t, cfg.Forefoot.Stepper.Pins.Step, test.ShouldEqual, "34")
	test.That(t, cfg.StaticScaleFactors()[stage.Forefoot], test.ShouldEqual, 412.5)
}

func TestFromReaderJSON5(t *testing.T) {
	cfg, err := FromReader("", strings.NewReader(`{
		// bench B runs a short soak
		test: {max_cycles: 50, dwell_ms: 500,},
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Test.MaxCycles, test.ShouldEqual, 50)
	test.That(t, cfg.Params().Dwell, test.ShouldEqual, 500*time.Millisecond)
}

func TestSchema(t *testing.T) {
	schema, err := Schema()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(schema), test.ShouldContainSubstring, `"target_force_n"`)
	test.That(t, string(schema), test.ShouldContainSubstring, `"recalibration_interval"`)
	test.That(t, string(schema), test.ShouldNotContainSubstring, "ConfigFilePath")
}

func TestFromReaderErrors(t *testing.T) {
	_, err := FromReader("", strings.NewReader(`{"test": `))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "decode")

	for _, tc := range []struct {
		body, errStr string
	}{
		{`{"test": {"target_force_n": 0}}`, "target_force_n"},
		{`{"test": {"fault_policy": "retry"}}`, "fault_policy"},
		{`{"motion": {"microstep": 0}}`, "microstep"},
		{`{"forefoot": {"enabled": false}, "heel": {"enabled": false}}`, "at least one"},
		{`{"heel": {"stepper": {"pins": {"step": ""}}}}`, "pins.step"},
		{`{"forefoot": {"load_cell": {"dout": ""}}}`, "dout"},
		{`{"calibration": {"file": ""}}`, "file"},
		{`{"log": {"level": "loud"}}`, "log"},
	} {
		_, err := FromReader("", strings.NewReader(tc.body))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, tc.errStr)
	}

	// a disabled stage is not validated.
	_, err = FromReader("", strings.NewReader(`{"heel": {"enabled": false, "stepper": {"pins": {"step": ""}}}}`))
	test.That(t, err, test.ShouldBeNil)
}

func TestReadExpandsEnvironment(t *testing.T) {
	t.Setenv("FOOTRIG_CYCLES", "250")
	path := filepath.Join(t.TempDir(), "rig.json")
	test.That(t, os.WriteFile(path, []byte(`{"test": {"max_cycles": ${FOOTRIG_CYCLES}}}`), 0o600), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Test.MaxCycles, test.ShouldEqual, 250)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)

	_, err = Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
