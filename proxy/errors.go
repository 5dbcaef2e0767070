package proxy

import (
	"errors"

	"github.com/keep-starknet-strange/zaun/l1"
)

var (
	ErrStateIsFrozen         = &l1.RevertError{Reason: "STATE_IS_FROZEN"}
	ErrFinalized             = &l1.RevertError{Reason: "FINALIZED"}
	ErrUpgradeNotEnabledYet  = &l1.RevertError{Reason: "UPGRADE_NOT_ENABLED_YET"}
	ErrUnknownUpgrade        = &l1.RevertError{Reason: "UNKNOWN_UPGRADE_INFORMATION"}
	ErrAddressNotContract    = &l1.RevertError{Reason: "ADDRESS_NOT_CONTRACT"}
	ErrDirectCallDisallowed  = &l1.RevertError{Reason: "DIRECT_CALL_DISALLOWED"}
	ErrUnsupportedVersion    = errors.New("not supported by this proxy version")
	ErrMissingImplementation = errors.New("implementation address is zero")
)
