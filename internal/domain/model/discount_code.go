package model

import (
	"strings"

	"discount-code-service/internal/domain"
)

const (
	// CodeLength is the length of every generated discount code.
	CodeLength = 10
	// CodeAlphabet is the set of symbols generated codes are drawn from.
	CodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// MaxCodeBytes bounds caller-supplied codes so they fit the unique index.
	MaxCodeBytes = 256
)

// DiscountCode is a single-use code. Used flips from false to true at most once.
type DiscountCode struct {
	ID   int64
	Code string
	Used bool
}

// NewDiscountCode validates a caller-supplied code before it is granted.
// Any storable string is accepted; the generator's format is not enforced here.
func NewDiscountCode(code string) (*DiscountCode, error) {
	if !IsStorable(code) {
		return nil, domain.ErrInvalidArgument
	}
	return &DiscountCode{Code: code}, nil
}

// CodeStatus is the read-only view returned by validation.
// Used is nil when the code does not exist.
type CodeStatus struct {
	Exists bool
	Used   *bool
}

// StatusOf builds the validation view for a stored code (nil means absent).
func StatusOf(c *DiscountCode) CodeStatus {
	if c == nil {
		return CodeStatus{}
	}
	used := c.Used
	return CodeStatus{Exists: true, Used: &used}
}

// IsWellFormed reports whether s has the shape produced by the generator.
func IsWellFormed(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// IsStorable reports whether s can be persisted as a code: non-empty, at most
// MaxCodeBytes long and free of NUL bytes (Postgres TEXT rejects 0x00).
// A code that is not storable can never exist in the store.
func IsStorable(s string) bool {
	return s != "" && len(s) <= MaxCodeBytes && !strings.ContainsRune(s, 0)
}
