package validator

import (
	"reflect"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/keep-starknet-strange/zaun/core/felt"
	"github.com/keep-starknet-strange/zaun/utils"
)

var (
	once sync.Once
	v    *validator.Validate
)

// An address tagged nonzero_address must not be 0x0000000000000000000000000000000000000000.
func validateNonZeroAddress(fl validator.FieldLevel) bool {
	switch a := fl.Field().Interface().(type) {
	case common.Address:
		return a != (common.Address{})
	case *common.Address:
		return a != nil && *a != (common.Address{})
	default:
		return false
	}
}

// Validator returns a singleton that can be used to validate various objects
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()

		if err := v.RegisterValidation("nonzero_address", validateNonZeroAddress); err != nil {
			panic("failed to register validation: " + err.Error())
		}

		// Register these types to use their string representation for validation
		// purposes
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			switch f := field.Interface().(type) {
			case felt.Felt:
				return f.String()
			case *felt.Felt:
				return f.String()
			}
			panic("not a felt")
		}, felt.Felt{}, &felt.Felt{})
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if n, ok := field.Interface().(utils.Network); ok {
				return int(n)
			}
			panic("not a utils.Network")
		}, utils.Network(0))
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if l, ok := field.Interface().(utils.LogLevel); ok {
				return int(l)
			}
			panic("not a utils.LogLevel")
		}, utils.LogLevel(0))
	})
	return v
}
