package contract

import (
	"errors"
	"fmt"

	"github.com/keep-starknet-strange/zaun/l1"
)

var (
	ErrEncoding     = errors.New("invalid input")
	ErrPrecondition = errors.New("precondition not met")
)

// EncodingError is a malformed input detected before any network call.
type EncodingError struct {
	Field string
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrEncoding, e.Field, e.Err)
}

func (e *EncodingError) Unwrap() []error {
	return []error{ErrEncoding, e.Err}
}

// PreconditionError is an advisory rejection from a local read of contract
// state. It matches the revert sentinel the contract would have produced but
// never l1.ErrReverted, since nothing was submitted.
type PreconditionError struct {
	Op  string
	Err error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrPrecondition, e.Err)
}

func (e *PreconditionError) Is(target error) bool {
	switch target {
	case ErrPrecondition:
		return true
	case l1.ErrReverted:
		return false
	}
	var revertErr *l1.RevertError
	if errors.As(e.Err, &revertErr) {
		t, ok := target.(*l1.RevertError)
		return ok && t.Reason == revertErr.Reason
	}
	return errors.Is(e.Err, target)
}
