package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/gdp03/footrig/config"
	"github.com/gdp03/footrig/serial"
	"github.com/gdp03/footrig/stage"
	"github.com/gdp03/footrig/telemetry"
	"github.com/gdp03/footrig/utils"
)

// console is where the operator answers prompts and reads progress.
type console struct {
	in     io.Reader
	out    io.Writer
	closer io.Closer
}

// openConsole uses the serial device named by flag or config, falling back to
// the app's own streams.
func openConsole(c *cli.Context, cfg *config.Config) (*console, error) {
	device := c.String(flagConsole)
	if device == "" {
		device = cfg.Console.Device
	}
	if device == "" {
		return &console{in: c.App.Reader, out: c.App.Writer}, nil
	}
	baud := c.Int(flagBaud)
	if baud == 0 {
		baud = cfg.Console.BaudRate
	}
	port, err := serial.OpenDevice(device, baud)
	if err != nil {
		return nil, errors.Wrap(err, "opening operator console")
	}
	return &console{in: port, out: port, closer: port}, nil
}

func (con *console) Close() error {
	if con.closer == nil {
		return nil
	}
	return con.closer.Close()
}

// printParams renders the test parameters, and the scale factors in use if
// any, as a table.
func printParams(out io.Writer, cfg *config.Config, factors map[stage.Stage]float64) {
	p := cfg.Params()
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Parameter", "Value"})
	t.AppendRows([]table.Row{
		{"Target force", utils.FormatSigFigs(p.TargetForce, 3) + " N"},
		{"Max cycles", p.MaxCycles},
		{"Recalibration interval", p.RecalibrationInterval},
		{"Max seek steps", p.MaxSeekSteps},
		{"Pulses per step", p.PulsesPerStep},
		{"Fast half period", p.FastHalfPeriod},
		{"Slow half period", p.SlowHalfPeriod},
		{"Dwell", p.Dwell},
		{"Fault policy", p.FaultPolicy},
	})
	for _, s := range stage.All() {
		state := "disabled"
		if cfg.Stage(s).Enabled {
			state = "enabled"
		}
		row := table.Row{fmt.Sprintf("%s stage", s), state}
		if f, ok := factors[s]; ok {
			row[1] = fmt.Sprintf("%s, scale factor %s", state, utils.FormatSigFigs(f, 6))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func printSummary(out io.Writer, stats []telemetry.StageStats) {
	if len(stats) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Stage", "Replays", "Mean (N)", "Std dev (N)", "Min (N)", "Max (N)", "Recalibrations"})
	for _, st := range stats {
		t.AppendRow(table.Row{
			st.Stage, st.Readings,
			utils.FormatSigFigs(st.Mean, 3), utils.FormatSigFigs(st.StdDev, 3),
			utils.FormatSigFigs(st.Min, 3), utils.FormatSigFigs(st.Max, 3),
			st.Recalibrations,
		})
	}
	t.Render()
}

func printCaution(out io.Writer) {
	caution := color.New(color.FgRed, color.Bold)
	//nolint:errcheck
	caution.Fprintln(out, "CAUTION: keep hands and tools clear of the loading carriages.")
	printf(out, "Press Ctrl-C to stop the test. The carriages return home before the program exits.")
}

// countdown announces each remaining second of d, returning early if ctx is done.
func countdown(ctx context.Context, out io.Writer, d time.Duration, clk clock.Clock) error {
	for remaining := int(d / time.Second); remaining > 0; remaining-- {
		printf(out, "Starting in %d...", remaining)
		if !utils.SleepContext(ctx, clk, time.Second) {
			return ctx.Err()
		}
	}
	return nil
}
