// Package utils provides utility functions for trsa.
// This file contains bounds helpers that keep bit lengths, attempt budgets
// and message sizes inside ranges the arithmetic can serve in reasonable time.

package utils

import (
	"errors"
	"fmt"
)

// Maximum allowed sizes to prevent denial of service via huge requests.
const (
	// MaxKeyBits is the largest modulus length accepted for key generation.
	MaxKeyBits = 16384

	// MaxPrimeBits is the largest prime length accepted by the generator.
	MaxPrimeBits = MaxKeyBits

	// MaxMessageSize is the maximum allowed message size in bytes. Any
	// encodable message is already below MaxKeyBits/8.
	MaxMessageSize = MaxKeyBits / 8

	// MaxCiphertextTextLen bounds the textual (hex) form of a ciphertext.
	MaxCiphertextTextLen = 2*MaxMessageSize + 2

	// MaxRounds caps the Miller-Rabin round count.
	MaxRounds = 256
)

var (
	// ErrExceedsLimit indicates a value exceeds the allowed limit.
	ErrExceedsLimit = errors.New("value exceeds allowed limit")

	// ErrInvalidLength indicates an invalid length value.
	ErrInvalidLength = errors.New("invalid length")
)

// CheckLength validates that length is within [0, maxAllowed].
func CheckLength(length, maxAllowed int) error {
	if length < 0 {
		return ErrInvalidLength
	}
	if length > maxAllowed {
		return ErrExceedsLimit
	}
	return nil
}

// CheckPositive validates that value is > 0.
func CheckPositive(value int, name string) error {
	if value <= 0 {
		return errors.New(name + " must be positive")
	}
	return nil
}

// CheckRange validates that value is within [lo, hi].
func CheckRange(value, lo, hi int, name string) error {
	if value < lo || value > hi {
		return fmt.Errorf("%s must be in [%d, %d], got %d", name, lo, hi, value)
	}
	return nil
}
