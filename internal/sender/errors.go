package sender

import (
	"errors"
	"fmt"
	"time"
)

// TransientError marks a delivery fault worth retrying, optionally with
// a transport-suggested delay.
type TransientError struct {
	Reason     string
	RetryAfter time.Duration
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient delivery failure: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transient delivery failure: %s", e.Reason)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError marks a delivery fault that no retry can fix.
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent delivery failure: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("permanent delivery failure: %s", e.Reason)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func Transient(reason string, err error) error {
	return &TransientError{Reason: reason, Err: err}
}

func Permanent(reason string, err error) error {
	return &PermanentError{Reason: reason, Err: err}
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
