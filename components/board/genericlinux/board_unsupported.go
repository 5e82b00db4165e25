//go:build !linux

package genericlinux

import (
	"github.com/pkg/errors"

	"github.com/gdp03/footrig/components/board"
	"github.com/gdp03/footrig/logging"
)

// NewBoard is only available on Linux.
func NewBoard(logger logging.Logger) (board.Board, error) {
	return nil, errors.New("GPIO boards are only supported on linux")
}
