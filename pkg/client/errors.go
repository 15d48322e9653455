package client

import (
	"errors"
	"fmt"
)

var (
	ErrMediaAcquisition = errors.New("media acquisition failed")
	ErrNegotiation      = errors.New("negotiation failed")
	ErrNoCall           = errors.New("no call")
	// ErrCanceled means the call had ended before the command finished.
	ErrCanceled = errors.New("call canceled")
)

type MediaAcquisitionError struct {
	Err error
}

func (e *MediaAcquisitionError) Error() string {
	return fmt.Sprintf("%v: %v", ErrMediaAcquisition, e.Err)
}

func (e *MediaAcquisitionError) Unwrap() []error { return []error{ErrMediaAcquisition, e.Err} }
