package l1_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevertErrorIs(t *testing.T) {
	err := fmt.Errorf("consume: %w", &l1.RevertError{Reason: "INVALID_MESSAGE_TO_CONSUME"})

	require.ErrorIs(t, err, l1.ErrReverted)
	require.ErrorIs(t, err, &l1.RevertError{Reason: "INVALID_MESSAGE_TO_CONSUME"})
	assert.NotErrorIs(t, err, &l1.RevertError{Reason: "NO_MESSAGE_TO_CANCEL"})
}

func TestRevertErrorMessage(t *testing.T) {
	assert.Equal(t, "rejected by contract", (&l1.RevertError{}).Error())
	assert.Equal(t, "rejected by contract: FINALIZED", (&l1.RevertError{Reason: "FINALIZED"}).Error())

	hash := common.HexToHash("0x01")
	assert.Equal(t,
		"rejected by contract: FINALIZED (tx "+hash.Hex()+")",
		(&l1.RevertError{Reason: "FINALIZED", TxHash: hash}).Error())
}

func TestAsRevert(t *testing.T) {
	tests := map[string]struct {
		err    error
		reason string
		ok     bool
	}{
		"nil": {
			err: nil,
		},
		"transport": {
			err: errors.New("dial tcp: connection refused"),
		},
		"node message with reason": {
			err:    errors.New("execution reverted: L1_MSG_FEE_MUST_BE_GREATER_THAN_0"),
			reason: "L1_MSG_FEE_MUST_BE_GREATER_THAN_0",
			ok:     true,
		},
		"node message without reason": {
			err: errors.New("execution reverted"),
			ok:  true,
		},
		"already typed": {
			err:    fmt.Errorf("wrapped: %w", &l1.RevertError{Reason: "ONLY_GOVERNANCE"}),
			reason: "ONLY_GOVERNANCE",
			ok:     true,
		},
	}

	for description, test := range tests {
		t.Run(description, func(t *testing.T) {
			revertErr, ok := l1.AsRevert(test.err)
			require.Equal(t, test.ok, ok)
			if ok {
				assert.Equal(t, test.reason, revertErr.Reason)
			}
		})
	}
}
