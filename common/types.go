package common

import (
	"fmt"
	"math/big"
	"strings"
)

// BigInt is an arbitrary-precision integer that marshals to a JSON string.
// Token amounts and gas figures routinely exceed float64 precision, so they
// must never travel as JSON numbers.
type BigInt struct {
	big.Int
}

// NewBigInt returns a BigInt with the given value.
func NewBigInt(v int64) BigInt {
	return BigInt{*big.NewInt(v)}
}

// BigIntFromString parses a decimal string into a BigInt.
func BigIntFromString(s string) (BigInt, error) {
	var b BigInt
	if err := b.Int.UnmarshalText([]byte(s)); err != nil {
		return BigInt{}, fmt.Errorf("parsing big int %q: %w", s, err)
	}
	return b, nil
}

func (b BigInt) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *BigInt) UnmarshalText(text []byte) error {
	return b.Int.UnmarshalText(text)
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, b.String())), nil
}

func (b *BigInt) UnmarshalJSON(text []byte) error {
	v := strings.Trim(string(text), "\"")
	return b.Int.UnmarshalJSON([]byte(v))
}

// ContextKey is the key type used to set values in a request context.
type ContextKey string

const (
	// RequestIDContextKey is used to set a request id for tracing
	// in a request context.
	RequestIDContextKey ContextKey = "request_id"
)
