package appchain

import (
	"errors"
	"fmt"

	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/core/crypto"
	"github.com/keep-starknet-strange/zaun/core/felt"
)

var errNilFelt = errors.New("nil felt")

// Calldata serialises arguments the way Cairo's Serde does: scalars as one
// felt, spans as their length followed by their elements.
type Calldata struct {
	felts []*felt.Felt
	err   error
}

// Felt appends a scalar argument.
func (c *Calldata) Felt(name string, v *felt.Felt) *Calldata {
	if c.err != nil {
		return c
	}
	if v == nil {
		c.err = &contract.EncodingError{Field: name, Err: errNilFelt}
		return c
	}
	c.felts = append(c.felts, v)
	return c
}

// Span appends a Span<felt252> argument.
func (c *Calldata) Span(name string, vs []*felt.Felt) *Calldata {
	if c.err != nil {
		return c
	}
	for i, v := range vs {
		if v == nil {
			c.err = &contract.EncodingError{Field: fmt.Sprintf("%s[%d]", name, i), Err: errNilFelt}
			return c
		}
	}
	c.felts = append(c.felts, felt.NewFromUint64(uint64(len(vs))))
	c.felts = append(c.felts, vs...)
	return c
}

func (c *Calldata) Build() ([]*felt.Felt, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.felts, nil
}

func mustSelector(name string) *felt.Felt {
	selector, err := crypto.SelectorFromName(name)
	if err != nil {
		panic(fmt.Sprintf("selector %s: %v", name, err))
	}
	return selector
}
