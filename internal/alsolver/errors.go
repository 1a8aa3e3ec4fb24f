package alsolver

import (
	"errors"
	"fmt"
)

var (
	// ErrEscalationExhausted indicates the penalty weight was escalated the
	// maximum number of times without reaching an admissible solution.
	ErrEscalationExhausted = errors.New("alsolver: unable to satisfy constraints")

	ErrOptions = errors.New("alsolver: invalid options")
	ErrSize    = errors.New("alsolver: solution size mismatch")
)

// EscalationError reports the weight and step count at which the solve
// gave up.
type EscalationError struct {
	Weight   float64
	Steps    int
	MaxSteps int
}

func (e *EscalationError) Error() string {
	return fmt.Sprintf("%v: out of AL steps after %d of %d (current weight = %g)", ErrEscalationExhausted, e.Steps, e.MaxSteps, e.Weight)
}

func (e *EscalationError) Unwrap() error {
	return ErrEscalationExhausted
}
