// Package search classifies free-form query strings into chain resource
// categories and resolves them against the data layer with bounded
// parallel probes.
package search

import (
	"strconv"
	"strings"
)

// Category is the structural classification of a query string.
type Category string

const (
	CategoryBlockHeight      Category = "block_height"
	CategoryTxHash           Category = "tx_hash"
	CategoryEvmTxHash        Category = "evm_tx_hash"
	CategoryEvmAddress       Category = "evm_address"
	CategoryBech32Address    Category = "bech32_address"
	CategoryValidatorAddress Category = "validator_address"
	CategoryUnknown          Category = "unknown"
)

// bech32Charset is the character set of a bech32 data part.
const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// minBech32Tail is the minimum data-part length of an account address.
const minBech32Tail = 38

// Classifier maps query strings to categories for one chain's address
// prefix.
type Classifier struct {
	prefix string
}

func NewClassifier(bech32Prefix string) *Classifier {
	return &Classifier{prefix: bech32Prefix}
}

// Classify is total and deterministic: every input maps to exactly one
// category. Matching is purely structural; no lookups are performed.
func (c *Classifier) Classify(query string) Category {
	q := strings.TrimSpace(query)
	if q == "" {
		return CategoryUnknown
	}

	// An all-digit string is a height only if it round-trips through
	// integer form, rejecting leading zeros and overflow.
	if isDigits(q) {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil && strconv.FormatUint(n, 10) == q {
			return CategoryBlockHeight
		}
		// Falls through: a 64-digit string can still be a hash.
	}

	if rest, ok := strings.CutPrefix(q, "0x"); ok {
		switch {
		case len(rest) == 64 && isHex(rest):
			return CategoryEvmTxHash
		case len(rest) == 40 && isHex(rest):
			return CategoryEvmAddress
		}
		return CategoryUnknown
	}

	if len(q) == 64 && isHex(q) {
		return CategoryTxHash
	}

	// Validator addresses before account addresses: the valoper form also
	// matches the plain bech32 shape.
	if tail, ok := strings.CutPrefix(q, c.prefix+"valoper1"); ok {
		if len(tail) >= minBech32Tail && isBech32(tail) {
			return CategoryValidatorAddress
		}
		return CategoryUnknown
	}
	if tail, ok := strings.CutPrefix(q, c.prefix+"1"); ok {
		if len(tail) >= minBech32Tail && isBech32(tail) {
			return CategoryBech32Address
		}
		return CategoryUnknown
	}

	return CategoryUnknown
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isBech32(s string) bool {
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(bech32Charset, rune(s[i])) {
			return false
		}
	}
	return true
}
