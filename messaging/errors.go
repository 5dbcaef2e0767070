package messaging

import (
	"errors"

	"github.com/keep-starknet-strange/zaun/l1"
)

var (
	ErrEmptyAddress = errors.New("empty address")
	ErrNilSelector  = errors.New("nil selector")
	ErrFeeRequired  = errors.New("fee must be greater than 0")
)

// Rejections by the messaging contract.
var (
	ErrFeeMustBePositive         = &l1.RevertError{Reason: "L1_MSG_FEE_MUST_BE_GREATER_THAN_0"}
	ErrMaxFeeExceeded            = &l1.RevertError{Reason: "MAX_L1_MSG_FEE_EXCEEDED"}
	ErrInvalidMessageToConsume   = &l1.RevertError{Reason: "INVALID_MESSAGE_TO_CONSUME"}
	ErrNoMessageToCancel         = &l1.RevertError{Reason: "NO_MESSAGE_TO_CANCEL"}
	ErrCancellationNotRequested  = &l1.RevertError{Reason: "MESSAGE_CANCELLATION_NOT_REQUESTED"}
	ErrCancellationNotAllowedYet = &l1.RevertError{Reason: "MESSAGE_CANCELLATION_NOT_ALLOWED_YET"}
	ErrCancelAllowedTimeOverflow = &l1.RevertError{Reason: "CANCEL_ALLOWED_TIME_OVERFLOW"}
)

var errMissingSendEvent = errors.New("receipt has no matching LogMessageToL2 event")
