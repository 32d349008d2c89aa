package trsa

import "errors"

// Sentinel errors for errors.Is() checks
var (
	// ErrInvalidModulus is returned for a key bit length that is non-positive,
	// odd, or outside the supported range.
	ErrInvalidModulus = errors.New("invalid modulus bit length")

	// ErrInvalidBitLength is returned when a prime of fewer than 2 bits is requested.
	ErrInvalidBitLength = errors.New("invalid prime bit length")

	// ErrInvalidRounds is returned for a non-positive Miller-Rabin round count.
	ErrInvalidRounds = errors.New("rounds must be positive")

	// ErrInverseNotFound is returned when gcd(a, m) != 1.
	ErrInverseNotFound = errors.New("modular inverse does not exist")

	// ErrMessageTooLarge is returned when the message integer is not below n.
	ErrMessageTooLarge = errors.New("message too long for the key size")

	// ErrGenerationExhausted is returned when a randomized search spends its
	// attempt budget without success.
	ErrGenerationExhausted = errors.New("generation attempts exhausted")

	// ErrInvalidKey is returned for nil or malformed keys.
	ErrInvalidKey = errors.New("invalid key")

	// ErrCiphertextOutOfRange is returned for a ciphertext outside [0, n).
	ErrCiphertextOutOfRange = errors.New("ciphertext out of range")

	// ErrInvalidSeed is returned for a deterministic seed that is too short or
	// has low entropy.
	ErrInvalidSeed = errors.New("invalid seed")
)
