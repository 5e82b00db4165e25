// Package cli contains the footrig command line: the operator sequence that
// calibrates the load cells, confirms, and runs a cyclic load test.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig      = "config"
	flagDebug       = "debug"
	flagSimulate    = "simulate"
	flagYes         = "yes"
	flagConsole     = "console"
	flagBaud        = "baud"
	flagListen      = "listen"
	flagCalibration = "calibration"
	flagLogDir      = "log-dir"

	calibrationWizard = "wizard"
	calibrationStored = "stored"
)

func rigFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  flagSimulate,
			Usage: "drive a simulated specimen instead of GPIO hardware",
		},
		&cli.StringFlag{
			Name:  flagConsole,
			Usage: "talk to the operator over the serial `DEVICE` instead of stdin/stdout",
		},
		&cli.IntFlag{
			Name:  flagBaud,
			Usage: "serial console baud rate",
		},
	}
}

// NewApp returns the footrig app reading operator input from in.
func NewApp(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "footrig",
		Usage:           "run cyclic load tests on a prosthetic foot",
		HideHelpCommand: true,
		Reader:          in,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogDir,
				Usage: "also write rotated JSON logs to `DIR`",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "calibrate, confirm and run a test",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:    flagYes,
						Aliases: []string{"y"},
						Usage:   "start without asking for confirmation",
					},
					&cli.StringFlag{
						Name:  flagListen,
						Usage: "serve the live status stream on `ADDR` (host:port)",
					},
					&cli.StringFlag{
						Name:  flagCalibration,
						Value: calibrationWizard,
						Usage: "how to get load cell scale factors: wizard or stored",
					},
				}, rigFlags()...),
				Action: RunAction,
			},
			{
				Name:   "calibrate",
				Usage:  "calibrate the load cells without running a test",
				Flags:  rigFlags(),
				Action: CalibrateAction,
			},
			{
				Name:   "params",
				Usage:  "print the test parameters",
				Action: ParamsAction,
			},
			{
				Name:   "ports",
				Usage:  "list serial ports",
				Action: PortsAction,
			},
			{
				Name:   "schema",
				Usage:  "print the JSON schema of the config file",
				Action: SchemaAction,
			},
		},
	}
}
