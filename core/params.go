// Package core provides parameter sets and validation for trsa.
package core

import (
	"errors"
	"fmt"

	trsa "github.com/BackendStack21/trsa-go"
	"github.com/BackendStack21/trsa-go/utils"
)

const (
	// DefaultRounds is the Miller-Rabin round count used during generation.
	// A composite survives with probability at most 4^-8.
	DefaultRounds = 8

	// DefaultVerifyRounds is the round count used to re-check a generated prime.
	DefaultVerifyRounds = 32

	// DefaultPublicExponent is the preferred public exponent, F4 = 2^16 + 1.
	DefaultPublicExponent = 65537

	// MinKeyBits is the smallest modulus length accepted. Shorter even lengths
	// such as 6 (5 * 7) still have two distinct half-length primes but leave
	// almost no room for a message.
	MinKeyBits = 8

	// MaxKeyBits is the largest modulus length accepted.
	MaxKeyBits = utils.MaxKeyBits

	// attemptsPerBit and minAttempts size the default draw budget. The expected
	// number of draws for a b-bit prime is about b*ln(2)/2.
	attemptsPerBit = 64
	minAttempts    = 1024
)

// DemoParams is the parameter set used by the interactive demo.
var DemoParams = trsa.Params{
	Size:           trsa.Demo,
	Bits:           512,
	Rounds:         DefaultRounds,
	PublicExponent: DefaultPublicExponent,
	VerifyRounds:   DefaultVerifyRounds,
}

// Params1024 is the parameter set for a 1024-bit modulus.
var Params1024 = trsa.Params{
	Size:           trsa.KeySize1024,
	Bits:           1024,
	Rounds:         DefaultRounds,
	PublicExponent: DefaultPublicExponent,
	VerifyRounds:   DefaultVerifyRounds,
}

// Params2048 is the parameter set for a 2048-bit modulus.
var Params2048 = trsa.Params{
	Size:           trsa.KeySize2048,
	Bits:           2048,
	Rounds:         DefaultRounds,
	PublicExponent: DefaultPublicExponent,
	VerifyRounds:   DefaultVerifyRounds,
}

// Params3072 is the parameter set for a 3072-bit modulus.
var Params3072 = trsa.Params{
	Size:           trsa.KeySize3072,
	Bits:           3072,
	Rounds:         DefaultRounds,
	PublicExponent: DefaultPublicExponent,
	VerifyRounds:   DefaultVerifyRounds,
}

// Params4096 is the parameter set for a 4096-bit modulus.
var Params4096 = trsa.Params{
	Size:           trsa.KeySize4096,
	Bits:           4096,
	Rounds:         DefaultRounds,
	PublicExponent: DefaultPublicExponent,
	VerifyRounds:   DefaultVerifyRounds,
}

// GetParams returns the parameter set for the given key size.
func GetParams(size trsa.KeySize) (trsa.Params, error) {
	switch size {
	case trsa.Demo:
		return DemoParams, nil
	case trsa.KeySize1024:
		return Params1024, nil
	case trsa.KeySize2048:
		return Params2048, nil
	case trsa.KeySize3072:
		return Params3072, nil
	case trsa.KeySize4096:
		return Params4096, nil
	default:
		return trsa.Params{}, fmt.Errorf("unknown key size: %s", size)
	}
}

// ParamsForBits returns default parameters for an arbitrary modulus length.
// Named sizes are returned as-is; other lengths get a custom size label.
func ParamsForBits(bits int) (trsa.Params, error) {
	for _, p := range []trsa.Params{DemoParams, Params1024, Params2048, Params3072, Params4096} {
		if p.Bits == bits {
			return p, nil
		}
	}
	params := trsa.Params{
		Size:           trsa.KeySize(fmt.Sprintf("RSA-%d", bits)),
		Bits:           bits,
		Rounds:         DefaultRounds,
		PublicExponent: DefaultPublicExponent,
		VerifyRounds:   DefaultVerifyRounds,
	}
	if err := ValidateParams(params); err != nil {
		return trsa.Params{}, err
	}
	return params, nil
}

// ValidateKeyBits checks a requested modulus length. The length must be
// positive, even and within [MinKeyBits, MaxKeyBits].
func ValidateKeyBits(bits int) error {
	if bits <= 0 {
		return fmt.Errorf("%w: %d is not positive", trsa.ErrInvalidModulus, bits)
	}
	if bits%2 != 0 {
		return fmt.Errorf("%w: %d is odd", trsa.ErrInvalidModulus, bits)
	}
	if err := utils.CheckRange(bits, MinKeyBits, MaxKeyBits, "bits"); err != nil {
		return fmt.Errorf("%w: %v", trsa.ErrInvalidModulus, err)
	}
	return nil
}

// ValidateRounds checks a Miller-Rabin round count.
func ValidateRounds(rounds int) error {
	if err := utils.CheckRange(rounds, 1, utils.MaxRounds, "rounds"); err != nil {
		return fmt.Errorf("%w: %v", trsa.ErrInvalidRounds, err)
	}
	return nil
}

// ValidateParams validates the parameter set for consistency.
func ValidateParams(params trsa.Params) error {
	if err := ValidateKeyBits(params.Bits); err != nil {
		return err
	}
	if err := ValidateRounds(params.Rounds); err != nil {
		return err
	}
	if params.VerifyRounds < params.Rounds {
		return errors.New("verify rounds must not be below generation rounds")
	}
	if params.MaxAttempts < 0 {
		return errors.New("max attempts must not be negative")
	}
	if params.PublicExponent < 3 || !isPrime(params.PublicExponent) {
		return errors.New("public exponent must be a prime of at least 3")
	}
	return nil
}

// AttemptBudget returns maxAttempts when the caller set one, otherwise the
// default budget for a search over bits-bit candidates.
func AttemptBudget(bits, maxAttempts int) int {
	if maxAttempts > 0 {
		return maxAttempts
	}
	return max(minAttempts, attemptsPerBit*bits)
}

// isPrime checks if a number is prime using a simple trial division.
// This is used for validating parameters, not for generating large primes.
func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	if n == 2 {
		return true
	}
	if n%2 == 0 {
		return false
	}
	for i := 3; i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}
