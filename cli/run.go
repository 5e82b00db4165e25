package cli

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gdp03/footrig/calibration"
	"github.com/gdp03/footrig/components/forcesensor"
	"github.com/gdp03/footrig/config"
	"github.com/gdp03/footrig/logging"
	"github.com/gdp03/footrig/serial"
	"github.com/gdp03/footrig/services/cycletest"
	"github.com/gdp03/footrig/stage"
	"github.com/gdp03/footrig/telemetry"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Read(path)
}

// newLogger logs to the app's error stream, and to rotated files when a log
// directory is given.
func newLogger(c *cli.Context, cfg *config.Config) (logging.Logger, func() error, error) {
	level, err := logging.LevelFromString(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	if c.Bool(flagDebug) {
		level = logging.DEBUG
	}
	logger := logging.NewBlankLogger("footrig")
	logger.AddAppender(zapcore.NewCore(
		zapcore.NewConsoleEncoder(logging.NewEncoderConfig()),
		zapcore.Lock(zapcore.AddSync(c.App.ErrWriter)),
		zapcore.DebugLevel,
	))
	closeLogs := func() error { return nil }
	dir := c.String(flagLogDir)
	if dir == "" {
		dir = cfg.Log.Dir
	}
	if dir != "" {
		appender, closer := logging.NewFileAppender(dir, "footrig.log", zap.NewAtomicLevelAt(zapcore.DebugLevel))
		logger.AddAppender(appender)
		closeLogs = closer
	}
	logger.SetLevel(level)
	return logger, closeLogs, nil
}

// session is what every hardware command sets up before talking to the operator.
type session struct {
	cfg     *config.Config
	logger  logging.Logger
	console *console
	rig     *rig
	store   *calibration.Store
	wizard  *calibration.Wizard
	close   func()
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger, closeLogs, err := newLogger(c, cfg)
	if err != nil {
		return nil, err
	}
	con, err := openConsole(c, cfg)
	if err != nil {
		//nolint:errcheck
		closeLogs()
		return nil, err
	}
	r, err := openRig(cfg, c.Bool(flagSimulate), logger)
	if err != nil {
		//nolint:errcheck
		con.Close()
		//nolint:errcheck
		closeLogs()
		return nil, err
	}
	calLogger := logger.Sublogger("calibration")
	store := calibration.NewStore(cfg.Calibration.File, calLogger)
	s := &session{
		cfg:     cfg,
		logger:  logger,
		console: con,
		rig:     r,
		store:   store,
		wizard:  calibration.NewWizard(con.in, con.out, r.sensors, store, calLogger),
	}
	s.close = func() {
		s.wizard.Close()
		if err := r.Close(context.Background()); err != nil {
			logger.Errorw("failed to release the rig", "error", err)
		}
		if err := con.Close(); err != nil {
			logger.Warnw("failed to close console", "error", err)
		}
		//nolint:errcheck
		logger.Sync()
		if err := closeLogs(); err != nil {
			warningf(c.App.ErrWriter, "failed to close log file: %v", err)
		}
	}
	return s, nil
}

// calibrate sets each enabled stage's scale factor, taking it from the config
// file when set there and from provider otherwise.
func calibrate(
	ctx context.Context,
	cfg *config.Config,
	provider calibration.Provider,
	sensors map[stage.Stage]forcesensor.Calibrator,
) (map[stage.Stage]float64, error) {
	static := cfg.StaticScaleFactors()
	factors := map[stage.Stage]float64{}
	for _, s := range cfg.EnabledStages() {
		var p calibration.Provider = provider
		if _, ok := static[s]; ok {
			p = static
		}
		factor, err := p.ScaleFactor(ctx, s)
		if err != nil {
			return nil, errors.Wrapf(err, "calibrating %s", s)
		}
		if err := sensors[s].SetScaleFactor(factor); err != nil {
			return nil, errors.Wrapf(err, "setting %s scale factor", s)
		}
		factors[s] = factor
	}
	return factors, nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// serveTelemetry serves the live status stream at addr under /ws.
func serveTelemetry(addr string, logger logging.Logger) (*telemetry.Hub, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "listening on %s", addr)
	}
	hub := telemetry.NewHub(logger)
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("status stream server stopped", "error", err)
		}
	}()
	logger.Infow("serving status stream", "address", "ws://"+ln.Addr().String()+"/ws")
	return hub, func() {
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warnw("status stream server shutdown", "error", err)
		}
	}, nil
}

// RunAction calibrates, asks the operator to confirm, counts down and runs
// the test until it completes, halts, or is interrupted.
func RunAction(c *cli.Context) error {
	var provider func(s *session) calibration.Provider
	switch c.String(flagCalibration) {
	case calibrationWizard:
		provider = func(s *session) calibration.Provider { return s.wizard }
	case calibrationStored:
		provider = func(s *session) calibration.Provider { return s.store }
	default:
		return errors.Errorf("--%s must be %q or %q", flagCalibration, calibrationWizard, calibrationStored)
	}

	sess, err := openSession(c)
	if err != nil {
		return err
	}
	defer sess.close()
	ctx, stop := signalContext(c)
	defer stop()
	out := sess.console.out

	factors, err := calibrate(ctx, sess.cfg, provider(sess), sess.rig.sensors)
	if err != nil {
		return err
	}
	printParams(out, sess.cfg, factors)
	printCaution(out)
	if !c.Bool(flagYes) {
		ok, err := sess.wizard.Confirm(ctx, "Start the test?")
		if err != nil {
			return err
		}
		if !ok {
			printf(out, "Test not started.")
			return nil
		}
	}
	if err := countdown(ctx, out, sess.cfg.Countdown(), clock.New()); err != nil {
		printf(out, "Test not started.")
		return nil
	}

	summary := telemetry.NewSummary()
	sink := telemetry.Multi{
		telemetry.LogSink{Logger: sess.logger.Sublogger("telemetry")},
		telemetry.NewTextSink(out),
		summary,
	}
	listen := c.String(flagListen)
	if listen == "" {
		listen = sess.cfg.Telemetry.Listen
	}
	if listen != "" {
		hub, shutdown, err := serveTelemetry(listen, sess.logger.Sublogger("telemetry"))
		if err != nil {
			return err
		}
		defer shutdown()
		sink = append(sink, hub)
	}

	ctrl, err := cycletest.New(
		sess.rig.steppers,
		sess.rig.forceSensors(),
		sess.cfg.Params(),
		sess.logger.Sublogger("cycletest"),
		cycletest.WithSink(sink),
	)
	if err != nil {
		return err
	}
	if err := sess.rig.steppers.Enable(ctx, true); err != nil {
		return errors.Wrap(err, "enabling drives")
	}
	result, err := ctrl.Run(ctx)
	printSummary(out, summary.Stats())
	if result.Reason == cycletest.HaltAborted {
		printf(out, "Test stopped by operator after %d cycles.", result.Cycles)
		return nil
	}
	return err
}

// CalibrateAction runs the calibration dialogue for every enabled stage.
func CalibrateAction(c *cli.Context) error {
	sess, err := openSession(c)
	if err != nil {
		return err
	}
	defer sess.close()
	ctx, stop := signalContext(c)
	defer stop()

	factors, err := calibrate(ctx, sess.cfg, sess.wizard, sess.rig.sensors)
	if err != nil {
		return err
	}
	printParams(sess.console.out, sess.cfg, factors)
	return nil
}

// ParamsAction prints the test parameters from the config.
func ParamsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	printParams(c.App.Writer, cfg, cfg.StaticScaleFactors())
	return nil
}

// PortsAction lists the serial ports an operator console could use.
func PortsAction(c *cli.Context) error {
	ports, err := serial.Search()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		warningf(c.App.ErrWriter, "no serial ports found")
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"Path", "Type", "Product"})
	for _, p := range ports {
		t.AppendRow(table.Row{p.Path, p.Type, p.Product})
	}
	t.Render()
	return nil
}

// SchemaAction prints the config file JSON schema.
func SchemaAction(c *cli.Context) error {
	schema, err := config.Schema()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", schema)
	return nil
}
