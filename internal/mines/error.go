package mines

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration = errors.New("invalid board configuration")
	ErrOutOfBounds          = errors.New("coordinate out of bounds")
)

type ConfigError struct {
	Params Params
	Reason string
}

// [ConfigError] implements [error]
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s (board %s): %s",
		ErrInvalidConfiguration, e.Params, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

type BoundsError struct {
	Row, Col   int
	Rows, Cols int
}

// [BoundsError] implements [error]
func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s: (%d, %d) on a %dx%d board",
		ErrOutOfBounds, e.Row, e.Col, e.Rows, e.Cols)
}

func (e *BoundsError) Unwrap() error {
	return ErrOutOfBounds
}
