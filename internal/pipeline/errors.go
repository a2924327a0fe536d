package pipeline

import (
	"errors"
	"fmt"

	"surveypilot/internal/model"
)

var (
	ErrInvalidConstraints  = errors.New("invalid constraints")
	ErrNoActiveRule        = errors.New("no active combination rule")
	ErrAmbiguousActiveRule = errors.New("more than one active combination rule")
)

// StageError is a failure inside one stage
type StageError struct {
	Stage model.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConstraints, fmt.Sprintf(format, args...))
}
