package contact

import (
	"errors"
	"fmt"
)

var (
	// ErrCCDVerification indicates an intersecting configuration survived
	// halving the CCD step down to zero.
	ErrCCDVerification = errors.New("contact: CCD step verification failed")

	// ErrOptions indicates an invalid contact configuration.
	ErrOptions = errors.New("contact: invalid options")
)

// CCDVerificationError carries the step and displacement size at failure.
type CCDVerificationError struct {
	Step float64
	LInf float64
}

func (e *CCDVerificationError) Error() string {
	return fmt.Sprintf("%v: step %g with max displacement %g", ErrCCDVerification, e.Step, e.LInf)
}

func (e *CCDVerificationError) Unwrap() error {
	return ErrCCDVerification
}
