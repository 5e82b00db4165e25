// Package config defines the rig configuration file.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"

	"github.com/gdp03/footrig/calibration"
	"github.com/gdp03/footrig/components/actuator/gpiostepper"
	"github.com/gdp03/footrig/components/forcesensor/hx711"
	"github.com/gdp03/footrig/logging"
	"github.com/gdp03/footrig/serial"
	"github.com/gdp03/footrig/services/cycletest"
	"github.com/gdp03/footrig/stage"
)

// Config is the whole rig configuration.
type Config struct {
	ConfigFilePath string `json:"-"`

	Test        TestConfig        `json:"test"`
	Motion      MotionConfig      `json:"motion"`
	Forefoot    StageConfig       `json:"forefoot"`
	Heel        StageConfig       `json:"heel"`
	Calibration CalibrationConfig `json:"calibration"`
	Console     ConsoleConfig     `json:"console"`
	Telemetry   TelemetryConfig   `json:"telemetry"`
	Log         LogConfig         `json:"log"`
}

// TestConfig are the parameters of a fatigue run.
type TestConfig struct {
	TargetForce           float64 `json:"target_force_n"`
	MaxCycles             int     `json:"max_cycles"`
	RecalibrationInterval int     `json:"recalibration_interval"`
	MaxSeekSteps          int     `json:"max_seek_steps"`
	DwellMs               int     `json:"dwell_ms"`
	CountdownSec          int     `json:"countdown_sec"`
	SensorStallTimeoutMs  int     `json:"sensor_stall_timeout_ms"`
	SensorPollIntervalMs  int     `json:"sensor_poll_interval_ms"`

	FaultPolicy cycletest.FaultPolicy `json:"fault_policy"`
}

// MotionConfig describes the drives shared by both stages.
type MotionConfig struct {
	// StepsPerIncrement is full steps per seek increment; 200 is one revolution.
	StepsPerIncrement int `json:"steps_per_increment"`
	Microstep         int `json:"microstep"`
	FastHalfPeriodUs  int `json:"fast_half_period_us"`
	SlowHalfPeriodUs  int `json:"slow_half_period_us"`
}

// StageConfig wires one loading carriage.
type StageConfig struct {
	Enabled  bool               `json:"enabled"`
	Stepper  gpiostepper.Config `json:"stepper"`
	LoadCell hx711.Config       `json:"load_cell"`
	// ScaleFactor, when set, is used instead of the calibration file.
	ScaleFactor float64 `json:"scale_factor,omitempty"`
}

// CalibrationConfig locates the stored scale factors.
type CalibrationConfig struct {
	File string `json:"file"`
}

// ConsoleConfig is the optional serial operator console.
type ConsoleConfig struct {
	Device   string `json:"device,omitempty"`
	BaudRate int    `json:"baud_rate,omitempty"`
}

// TelemetryConfig is the optional live status stream.
type TelemetryConfig struct {
	// Listen is a host:port to serve the websocket stream on.
	Listen string `json:"listen,omitempty"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `json:"level"`
	// Dir, when set, also writes rotated JSON logs there.
	Dir string `json:"dir,omitempty"`
}

// Default returns the configuration of the rig as built.
func Default() *Config {
	return &Config{
		Test: TestConfig{
			TargetForce:           1.5,
			MaxCycles:             1000,
			RecalibrationInterval: 1001,
			MaxSeekSteps:          10000,
			DwellMs:               200,
			CountdownSec:          10,
			SensorStallTimeoutMs:  2000,
			SensorPollIntervalMs:  5,
			FaultPolicy:           cycletest.FaultHalt,
		},
		Motion: MotionConfig{
			StepsPerIncrement: 200,
			Microstep:         4,
			FastHalfPeriodUs:  300,
			SlowHalfPeriodUs:  1000,
		},
		Forefoot: StageConfig{
			Enabled: true,
			Stepper: gpiostepper.Config{
				Pins: gpiostepper.PinConfig{Step: "34", Direction: "35", EnablePinLow: "28"},
			},
			LoadCell: hx711.Config{DataPin: "4", ClockPin: "5"},
		},
		Heel: StageConfig{
			Enabled: true,
			Stepper: gpiostepper.Config{
				Pins: gpiostepper.PinConfig{Step: "36", Direction: "37", EnablePinLow: "29"},
			},
			LoadCell: hx711.Config{DataPin: "6", ClockPin: "7"},
		},
		Calibration: CalibrationConfig{File: "footrig_calibration.json"},
		Console:     ConsoleConfig{BaudRate: serial.DefaultBaudRate},
		Log:         LogConfig{Level: "info"},
	}
}

// Stage returns the configuration of s.
func (c *Config) Stage(s stage.Stage) *StageConfig {
	if s == stage.Heel {
		return &c.Heel
	}
	return &c.Forefoot
}

// EnabledStages lists the enabled stages in cycle order.
func (c *Config) EnabledStages() []stage.Stage {
	return lo.Filter(stage.All(), func(s stage.Stage, _ int) bool {
		return c.Stage(s).Enabled
	})
}

// PulsesPerStep is the pulses issued for one seek increment.
func (m MotionConfig) PulsesPerStep() uint {
	return uint(m.StepsPerIncrement * m.Microstep)
}

// Params converts the configuration to controller parameters.
func (c *Config) Params() cycletest.Params {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	us := func(n int) time.Duration { return time.Duration(n) * time.Microsecond }
	return cycletest.Params{
		TargetForce:           c.Test.TargetForce,
		MaxCycles:             c.Test.MaxCycles,
		RecalibrationInterval: c.Test.RecalibrationInterval,
		MaxSeekSteps:          c.Test.MaxSeekSteps,
		PulsesPerStep:         c.Motion.PulsesPerStep(),
		FastHalfPeriod:        us(c.Motion.FastHalfPeriodUs),
		SlowHalfPeriod:        us(c.Motion.SlowHalfPeriodUs),
		Dwell:                 ms(c.Test.DwellMs),
		SensorStallTimeout:    ms(c.Test.SensorStallTimeoutMs),
		SensorPollInterval:    ms(c.Test.SensorPollIntervalMs),
		FaultPolicy:           c.Test.FaultPolicy,
		Stages:                c.EnabledStages(),
	}
}

// Countdown is the pause between confirming a run and the first pulse.
func (c *Config) Countdown() time.Duration {
	return time.Duration(c.Test.CountdownSec) * time.Second
}

// StaticScaleFactors returns the stages with a scale factor set in the file.
func (c *Config) StaticScaleFactors() calibration.Static {
	factors := calibration.Static{}
	for _, s := range stage.All() {
		if f := c.Stage(s).ScaleFactor; f != 0 {
			factors[s] = f
		}
	}
	return factors
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.Test.Validate("test"); err != nil {
		return err
	}
	if err := c.Motion.Validate("motion"); err != nil {
		return err
	}
	if len(c.EnabledStages()) == 0 {
		return utils.NewConfigValidationError("forefoot", errors.New("at least one of forefoot and heel must be enabled"))
	}
	for _, s := range c.EnabledStages() {
		if err := c.Stage(s).Validate(s.String()); err != nil {
			return err
		}
	}
	if c.Calibration.File == "" {
		return utils.NewConfigValidationFieldRequiredError("calibration", "file")
	}
	if c.Console.BaudRate < 0 {
		return utils.NewConfigValidationError("console", errors.New("baud_rate cannot be negative"))
	}
	if _, err := logging.LevelFromString(c.Log.Level); err != nil {
		return utils.NewConfigValidationError("log", err)
	}
	return c.Params().Validate()
}

// Validate checks the test parameters.
func (tc *TestConfig) Validate(path string) error {
	if tc.TargetForce <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "target_force_n")
	}
	if tc.MaxCycles < 1 {
		return utils.NewConfigValidationFieldRequiredError(path, "max_cycles")
	}
	if tc.RecalibrationInterval < 1 {
		return utils.NewConfigValidationFieldRequiredError(path, "recalibration_interval")
	}
	if tc.MaxSeekSteps < 1 {
		return utils.NewConfigValidationFieldRequiredError(path, "max_seek_steps")
	}
	if tc.DwellMs < 0 || tc.CountdownSec < 0 || tc.SensorPollIntervalMs < 0 {
		return utils.NewConfigValidationError(path, errors.New("dwell_ms, countdown_sec and sensor_poll_interval_ms cannot be negative"))
	}
	if tc.SensorStallTimeoutMs <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "sensor_stall_timeout_ms")
	}
	switch tc.FaultPolicy {
	case cycletest.FaultHalt, cycletest.FaultSkipStage:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("fault_policy must be %q or %q, got %q",
			cycletest.FaultHalt, cycletest.FaultSkipStage, tc.FaultPolicy))
	}
	return nil
}

// Validate checks the drive timing.
func (m *MotionConfig) Validate(path string) error {
	if m.StepsPerIncrement < 1 {
		return utils.NewConfigValidationFieldRequiredError(path, "steps_per_increment")
	}
	if m.Microstep < 1 {
		return utils.NewConfigValidationFieldRequiredError(path, "microstep")
	}
	if m.FastHalfPeriodUs < 1 {
		return utils.NewConfigValidationFieldRequiredError(path, "fast_half_period_us")
	}
	if m.SlowHalfPeriodUs < 1 {
		return utils.NewConfigValidationFieldRequiredError(path, "slow_half_period_us")
	}
	return nil
}

// Validate checks the stage wiring.
func (sc *StageConfig) Validate(path string) error {
	if err := sc.Stepper.Validate(path + ".stepper"); err != nil {
		return err
	}
	if err := sc.LoadCell.Validate(path + ".load_cell"); err != nil {
		return err
	}
	if sc.ScaleFactor < 0 {
		return utils.NewConfigValidationError(path, errors.New("scale_factor cannot be negative"))
	}
	return nil
}
