// Package hx711 implements an HX711 load cell amplifier bit-banged over two GPIO pins.
// datasheet can be found at: https://cdn.sparkfun.com/datasheets/Sensors/ForceFlex/hx711_english.pdf
package hx711

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/gdp03/footrig/components/board"
	"github.com/gdp03/footrig/components/forcesensor"
	"github.com/gdp03/footrig/logging"
	rigutils "github.com/gdp03/footrig/utils"
)

const (
	defaultGain    = 128
	defaultSamples = 16
	dataBits       = 24

	// the chip converts at 10 or 80 Hz; a few periods is plenty
	defaultSettleTimeout = 2 * time.Second
	pollInterval         = time.Millisecond
)

// Config describes how an HX711 is wired.
type Config struct {
	DataPin  string `json:"dout"`
	ClockPin string `json:"sck"`
	// Gain selects channel and gain for the next conversion: 128 or 64 on
	// channel A, 32 on channel B.
	Gain int `json:"gain,omitempty"`
	// Samples is the size of the rolling average behind Sample.
	Samples int `json:"samples,omitempty"`
	// SettleTimeoutMs bounds the wait for each conversion during Tare and
	// RawAverage.
	SettleTimeoutMs int `json:"settle_timeout_ms,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.DataPin == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "dout")
	}
	if cfg.ClockPin == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "sck")
	}
	if _, err := gainPulses(cfg.Gain); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if cfg.Samples < 0 {
		return utils.NewConfigValidationError(path, errors.New("samples cannot be negative"))
	}
	if cfg.SettleTimeoutMs < 0 {
		return utils.NewConfigValidationError(path, errors.New("settle_timeout_ms cannot be negative"))
	}
	return nil
}

// gainPulses returns the clock pulses after the 24 data bits that select the
// next conversion's gain.
func gainPulses(gain int) (int, error) {
	switch gain {
	case 0, 128:
		return 1, nil
	case 32:
		return 2, nil
	case 64:
		return 3, nil
	}
	return 0, errors.Errorf("%v is not a valid gain value. Choose from 32, 64, 128", gain)
}

// HX711 is one amplifier channel feeding a single load cell.
type HX711 struct {
	name       string
	logger     logging.Logger
	clk        clock.Clock
	dout, sck  board.GPIOPin
	gainPulses int
	samples    int
	settle     time.Duration

	mu          sync.Mutex
	avg         *rigutils.RollingAverage
	zeroOffset  float64
	scaleFactor float64
}

// New returns an HX711 on the named pins. The scale factor starts at 1.
func New(b board.Board, conf Config, name string, clk clock.Clock, logger logging.Logger) (*HX711, error) {
	if err := conf.Validate(name); err != nil {
		return nil, err
	}
	pulses, err := gainPulses(conf.Gain)
	if err != nil {
		return nil, err
	}
	samples := conf.Samples
	if samples == 0 {
		samples = defaultSamples
	}
	settle := defaultSettleTimeout
	if conf.SettleTimeoutMs > 0 {
		settle = time.Duration(conf.SettleTimeoutMs) * time.Millisecond
	}
	h := &HX711{
		name:        name,
		logger:      logger,
		clk:         clk,
		gainPulses:  pulses,
		samples:     samples,
		settle:      settle,
		avg:         rigutils.NewRollingAverage(samples),
		scaleFactor: 1,
	}
	if h.dout, err = b.GPIOPinByName(conf.DataPin); err != nil {
		return nil, err
	}
	if h.sck, err = b.GPIOPinByName(conf.ClockPin); err != nil {
		return nil, err
	}
	// SCK held high for more than 60us powers the chip down
	if err := h.sck.Set(context.Background(), false, nil); err != nil {
		return nil, errors.Wrapf(err, "hx711 (%s) cannot drive sck", name)
	}
	return h, nil
}

// ready reports whether a conversion is waiting: DOUT is pulled low.
func (h *HX711) ready(ctx context.Context) (bool, error) {
	high, err := h.dout.Get(ctx, nil)
	if err != nil {
		return false, errors.Wrapf(err, "hx711 (%s) cannot read dout", h.name)
	}
	return !high, nil
}

// ReadRaw clocks out one conversion as a signed 24 bit value, or returns
// forcesensor.ErrNotReady.
func (h *HX711) ReadRaw(ctx context.Context) (int32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readRaw(ctx)
}

// have to be locked to call.
func (h *HX711) readRaw(ctx context.Context) (int32, error) {
	ok, err := h.ready(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, forcesensor.ErrNotReady
	}

	var raw int32
	for i := 0; i < dataBits; i++ {
		bit, err := h.clockBit(ctx)
		if err != nil {
			return 0, err
		}
		raw <<= 1
		if bit {
			raw |= 1
		}
	}
	for i := 0; i < h.gainPulses; i++ {
		if _, err := h.clockBit(ctx); err != nil {
			return 0, err
		}
	}

	// sign extend from 24 bits
	if raw&0x800000 != 0 {
		raw |= -0x1000000
	}
	return raw, nil
}

// clockBit raises SCK, samples DOUT while high, then drops SCK.
func (h *HX711) clockBit(ctx context.Context) (bool, error) {
	if err := h.sck.Set(ctx, true, nil); err != nil {
		return false, errors.Wrapf(err, "hx711 (%s) cannot drive sck", h.name)
	}
	high, err := h.dout.Get(ctx, nil)
	if err != nil {
		return false, errors.Wrapf(err, "hx711 (%s) cannot read dout", h.name)
	}
	if err := h.sck.Set(ctx, false, nil); err != nil {
		return false, errors.Wrapf(err, "hx711 (%s) cannot drive sck", h.name)
	}
	return high, nil
}

// Sample adds a fresh conversion to the rolling average and returns the
// averaged force in newtons.
func (h *HX711) Sample(ctx context.Context) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	raw, err := h.readRaw(ctx)
	if err != nil {
		return 0, err
	}
	h.avg.Add(float64(raw))
	grams := (h.avg.Average() - h.zeroOffset) / h.scaleFactor
	return forcesensor.GramsToNewtons(grams), nil
}

func (h *HX711) SetScaleFactor(factor float64) error {
	if err := forcesensor.ValidateScaleFactor(factor); err != nil {
		return errors.Wrapf(err, "hx711 (%s)", h.name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scaleFactor = factor
	return nil
}

func (h *HX711) ScaleFactor() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scaleFactor
}

// ZeroOffset returns the raw value recorded by the last Tare.
func (h *HX711) ZeroOffset() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.zeroOffset
}

// collect reads n fresh conversions, waiting for each within the settle timeout.
func (h *HX711) collect(ctx context.Context, n int) (float64, error) {
	bound := rigutils.PollBound{Timeout: h.settle, Interval: pollInterval}
	sum := 0.0
	for i := 0; i < n; i++ {
		raw, err := rigutils.Poll(ctx, h.clk, bound, func(ctx context.Context) (int32, bool, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			raw, err := h.readRaw(ctx)
			if errors.Is(err, forcesensor.ErrNotReady) {
				return 0, false, nil
			}
			return raw, err == nil, err
		})
		if err != nil {
			return 0, errors.Wrapf(err, "hx711 (%s) waiting for conversion %d of %d", h.name, i+1, n)
		}
		sum += float64(raw)
	}
	return sum / float64(n), nil
}

// Tare averages a window of unloaded conversions into the zero offset and
// restarts the rolling average.
func (h *HX711) Tare(ctx context.Context) error {
	offset, err := h.collect(ctx, h.samples)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.zeroOffset = offset
	h.avg.Reset()
	h.mu.Unlock()
	h.logger.Debugw("tare complete", "sensor", h.name, "offset", offset)
	return nil
}

// RawAverage returns a fresh window average with the zero offset removed.
func (h *HX711) RawAverage(ctx context.Context) (float64, error) {
	mean, err := h.collect(ctx, h.samples)
	if err != nil {
		return 0, err
	}
	return mean - h.ZeroOffset(), nil
}
