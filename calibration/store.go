package calibration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/gdp03/footrig/components/forcesensor"
	"github.com/gdp03/footrig/logging"
	"github.com/gdp03/footrig/stage"
)

// Store keeps scale factors in a JSON file keyed by stage name.
type Store struct {
	path   string
	logger logging.Logger
	mu     sync.Mutex
}

// NewStore returns a store backed by path. The file need not exist yet.
func NewStore(path string, logger logging.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads every stored factor. A missing file is an empty store.
func (s *Store) Load() (map[stage.Stage]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (map[stage.Stage]float64, error) {
	factors := map[stage.Stage]float64{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return factors, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot read calibration file")
	}
	if err := json.Unmarshal(data, &factors); err != nil {
		return nil, errors.Wrapf(err, "cannot parse calibration file %s", s.path)
	}
	return factors, nil
}

// ScaleFactor implements Provider. A missing or zero entry falls back to
// DefaultScaleFactor with a warning.
func (s *Store) ScaleFactor(ctx context.Context, st stage.Stage) (float64, error) {
	factors, err := s.Load()
	if err != nil {
		return 0, err
	}
	factor := factors[st]
	if factor == 0 {
		s.logger.Warnw("calibration value is not set, using default", "stage", st, "default", DefaultScaleFactor)
		return DefaultScaleFactor, nil
	}
	if err := forcesensor.ValidateScaleFactor(factor); err != nil {
		return 0, errors.Wrapf(err, "stored %s calibration", st)
	}
	return factor, nil
}

// Save stores factor for st, keeping the other stages' entries.
func (s *Store) Save(st stage.Stage, factor float64) error {
	if err := forcesensor.ValidateScaleFactor(factor); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	factors, err := s.load()
	if err != nil {
		return err
	}
	factors[st] = factor
	data, err := json.MarshalIndent(factors, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "cannot create calibration directory")
	}
	tmp, err := os.CreateTemp(dir, ".calibration-*")
	if err != nil {
		return errors.Wrap(err, "cannot write calibration file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return errors.Wrap(err, "cannot write calibration file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "cannot write calibration file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "cannot replace calibration file")
	}
	s.logger.Infow("calibration saved", "stage", st, "factor", factor, "path", s.path)
	return nil
}
