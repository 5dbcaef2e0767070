package l1

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrReverted = errors.New("rejected by contract")
	ErrNoSigner = errors.New("no signer configured")

	ErrChainIDMismatch = errors.New("configured L1 chain id differs from the node")
)

const revertPrefix = "execution reverted"

// RevertError is a call rejected by contract logic. TxHash is zero when the
// rejection was detected before broadcasting.
type RevertError struct {
	Reason string
	TxHash common.Hash
}

func (e *RevertError) Error() string {
	msg := ErrReverted.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.TxHash != (common.Hash{}) {
		msg += " (tx " + e.TxHash.Hex() + ")"
	}
	return msg
}

// Is matches ErrReverted and any *RevertError carrying the same reason, so known
// reasons can be declared as comparable sentinels.
func (e *RevertError) Is(target error) bool {
	if target == ErrReverted {
		return true
	}
	t, ok := target.(*RevertError)
	return ok && t.Reason == e.Reason
}

// AsRevert extracts a contract rejection from a node error. The second return
// value is false for anything that is not a revert.
func AsRevert(err error) (*RevertError, bool) {
	if err == nil {
		return nil, false
	}
	var revertErr *RevertError
	if errors.As(err, &revertErr) {
		return revertErr, true
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := unpackRevertData(dataErr.ErrorData()); ok {
			return &RevertError{Reason: reason}, true
		}
	}

	msg := err.Error()
	idx := strings.Index(msg, revertPrefix)
	if idx < 0 {
		return nil, false
	}
	reason := strings.TrimPrefix(msg[idx+len(revertPrefix):], ":")
	return &RevertError{Reason: strings.TrimSpace(reason)}, true
}

func unpackRevertData(data any) (string, bool) {
	var raw []byte
	switch d := data.(type) {
	case string:
		decoded, err := hexutil.Decode(d)
		if err != nil {
			return "", false
		}
		raw = decoded
	case []byte:
		raw = d
	default:
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}
