package calibration

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/gdp03/footrig/components/forcesensor"
	"github.com/gdp03/footrig/logging"
	"github.com/gdp03/footrig/stage"
)

// ErrInputClosed is returned when the operator's input ends mid-dialogue.
var ErrInputClosed = errors.New("calibration input closed")

// Wizard asks an operator how to calibrate each stage over a line based
// console (stdin or a serial port).
//
// For each stage the operator picks y to tare and weigh a known mass, m to type
// a factor, or n to use the stored one. New factors can then be saved to the
// store. Anything else re-prompts. Waiting for input is not time bounded but
// ends on EOF or when ctx is done.
type Wizard struct {
	out     io.Writer
	sensors map[stage.Stage]forcesensor.Calibrator
	store   *Store
	logger  logging.Logger

	startOnce  sync.Once
	closeOnce  sync.Once
	in         io.Reader
	lines      chan string
	readErr    error
	done       chan struct{}
	readerDone chan struct{}
}

// NewWizard returns a wizard reading answers from in and writing prompts to out.
func NewWizard(
	in io.Reader,
	out io.Writer,
	sensors map[stage.Stage]forcesensor.Calibrator,
	store *Store,
	logger logging.Logger,
) *Wizard {
	return &Wizard{
		in:         in,
		out:        out,
		sensors:    sensors,
		store:      store,
		logger:     logger,
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
}

// Close stops the input reader once it has a line nobody asked for. A read
// blocked on the input itself ends when the input is closed.
func (w *Wizard) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}

func (w *Wizard) printf(format string, args ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w.out, format, args...)
}

func (w *Wizard) startReader() {
	w.lines = make(chan string)
	go func() {
		defer close(w.readerDone)
		defer close(w.lines)
		scanner := bufio.NewScanner(w.in)
		for scanner.Scan() {
			select {
			case w.lines <- strings.TrimSpace(scanner.Text()):
			case <-w.done:
				return
			}
		}
		w.readErr = scanner.Err()
	}()
}

// readLine blocks for the next non-empty line.
func (w *Wizard) readLine(ctx context.Context) (string, error) {
	w.startOnce.Do(w.startReader)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case line, ok := <-w.lines:
			if !ok {
				if w.readErr != nil {
					return "", errors.Wrap(w.readErr, "reading calibration input")
				}
				return "", ErrInputClosed
			}
			if line != "" {
				return line, nil
			}
		}
	}
}

// choose prompts until the answer is one of options.
func (w *Wizard) choose(ctx context.Context, prompt string, options ...string) (string, error) {
	w.printf("%s\n", prompt)
	for {
		line, err := w.readLine(ctx)
		if err != nil {
			return "", err
		}
		answer := strings.ToLower(line)
		for _, opt := range options {
			if answer == opt {
				return opt, nil
			}
		}
		w.printf("Invalid input. Please enter one of: %s\n", strings.Join(options, ", "))
	}
}

// number prompts until the answer parses as a non-zero number accepted by check.
func (w *Wizard) number(ctx context.Context, prompt string, check func(float64) error) (float64, error) {
	w.printf("%s\n", prompt)
	for {
		line, err := w.readLine(ctx)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(line, 64)
		if err == nil {
			err = check(v)
		}
		if err == nil {
			return v, nil
		}
		w.printf("Invalid input (%v). Please enter a number.\n", err)
	}
}

// ScaleFactor implements Provider by running the dialogue for one stage.
func (w *Wizard) ScaleFactor(ctx context.Context, st stage.Stage) (float64, error) {
	w.printf("***\nCalibrate the %s load cell?\n", st)
	choice, err := w.choose(ctx, "y: calibrate with a known mass, m: enter a value manually, n: use the saved value",
		"y", "m", "n")
	if err != nil {
		return 0, err
	}

	var factor float64
	switch choice {
	case "n":
		factor, err = w.store.ScaleFactor(ctx, st)
		if err != nil {
			return 0, err
		}
		w.printf("Saved value: %v\n***\n", factor)
		return factor, nil
	case "m":
		factor, err = w.manual(ctx, st)
	default:
		factor, err = w.auto(ctx, st)
	}
	if err != nil {
		return 0, err
	}

	save, err := w.choose(ctx, fmt.Sprintf("Save this value to %s? (y: yes, n: no)", w.store.Path()), "y", "n")
	if err != nil {
		return 0, err
	}
	if save == "y" {
		if err := w.store.Save(st, factor); err != nil {
			return 0, err
		}
		w.printf("Value %v saved\n", factor)
	} else {
		w.printf("Value not saved\n")
	}
	w.printf("***\n")
	return factor, nil
}

func (w *Wizard) manual(ctx context.Context, st stage.Stage) (float64, error) {
	current, err := w.store.ScaleFactor(ctx, st)
	if err != nil {
		w.logger.Warnw("cannot read current calibration", "stage", st, "error", err)
	} else {
		w.printf("Current value is: %v\n", current)
	}
	factor, err := w.number(ctx, "Send the new value (e.g. 14.4).", forcesensor.ValidateScaleFactor)
	if err != nil {
		return 0, err
	}
	w.printf("New calibration value is: %v\n", factor)
	return factor, nil
}

func (w *Wizard) auto(ctx context.Context, st stage.Stage) (float64, error) {
	sensor, ok := w.sensors[st]
	if !ok {
		return 0, errors.Errorf("no load cell configured for stage %q", st)
	}
	w.printf("Place the load cell on a level stable surface and remove any load.\n")
	if _, err := w.choose(ctx, "Send 't' to tare.", "t"); err != nil {
		return 0, err
	}
	if err := sensor.Tare(ctx); err != nil {
		return 0, errors.Wrapf(err, "taring %s load cell", st)
	}
	w.printf("Tare complete\n")

	mass, err := w.number(ctx, "Place a mass of known weight on the load cell, then send its weight in grams (e.g. 100.0).",
		func(v float64) error {
			if v <= 0 {
				return errors.New("mass must be positive")
			}
			return nil
		})
	if err != nil {
		return 0, err
	}
	w.printf("Known mass is: %v\n", mass)

	raw, err := sensor.RawAverage(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "weighing %s load cell", st)
	}
	factor := raw / mass
	if err := forcesensor.ValidateScaleFactor(factor); err != nil {
		return 0, errors.Wrap(err, "load cell did not register the mass")
	}
	w.printf("New calibration value has been set to: %v\n", factor)
	return factor, nil
}

// Confirm asks a y/n question on the same console and re-prompts until answered.
func (w *Wizard) Confirm(ctx context.Context, prompt string) (bool, error) {
	answer, err := w.choose(ctx, prompt+" (y/n)", "y", "n")
	return answer == "y", err
}
