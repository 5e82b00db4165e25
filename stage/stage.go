// Package stage names the loading stages of the rig.
package stage

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Stage identifies one independently actuated loading carriage.
type Stage int

const (
	Forefoot Stage = iota
	Heel
)

// All returns every stage in the order a cycle visits them.
func All() []Stage {
	return []Stage{Forefoot, Heel}
}

func (s Stage) String() string {
	switch s {
	case Forefoot:
		return "forefoot"
	case Heel:
		return "heel"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Valid reports whether s is one of the declared stages.
func (s Stage) Valid() bool {
	return s == Forefoot || s == Heel
}

// Parse converts a configuration key into a Stage.
func Parse(name string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "forefoot":
		return Forefoot, nil
	case "heel":
		return Heel, nil
	}
	return 0, errors.Errorf("unknown stage %q, expected forefoot or heel", name)
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, errors.Errorf("cannot marshal invalid stage %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
