package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"runtime"
)

// RandReader is the default randomness source. Tests may swap it.
var RandReader io.Reader = rand.Reader

// SecureRandomBytes generates n cryptographically secure random bytes.
// It uses crypto/rand, which relies on the operating system's CSPRNG.
func SecureRandomBytes(n int) ([]byte, error) {
	return RandomBytesFrom(RandReader, n)
}

// RandomBytesFrom reads exactly n bytes from r.
func RandomBytesFrom(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrInvalidLength
	}
	if r == nil {
		r = RandReader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading random bytes: %w", err)
	}
	return buf, nil
}

// RandomBits returns a uniformly random non-negative integer below 2^bits.
func RandomBits(r io.Reader, bits int) (*big.Int, error) {
	if bits <= 0 {
		return nil, errors.New("bits must be positive")
	}
	buf, err := RandomBytesFrom(r, (bits+7)/8)
	if err != nil {
		return nil, err
	}
	// Clear the excess high bits of the leading byte.
	if excess := len(buf)*8 - bits; excess > 0 {
		buf[0] &= byte(0xFF >> excess)
	}
	x := new(big.Int).SetBytes(buf)
	Zeroize(buf)
	return x, nil
}

// RandomBigInt generates a uniformly random integer in [0, max).
// It uses rejection sampling to ensure a uniform distribution.
func RandomBigInt(r io.Reader, max *big.Int) (*big.Int, error) {
	if max == nil || max.Sign() <= 0 {
		return nil, errors.New("max must be positive")
	}
	if max.Cmp(big.NewInt(1)) == 0 {
		return new(big.Int), nil
	}

	bitsNeeded := new(big.Int).Sub(max, big.NewInt(1)).BitLen()
	for {
		value, err := RandomBits(r, bitsNeeded)
		if err != nil {
			return nil, err
		}
		if value.Cmp(max) < 0 {
			return value, nil
		}
	}
}

// RandomInRange generates a uniformly random integer in [lo, hi].
func RandomInRange(r io.Reader, lo, hi *big.Int) (*big.Int, error) {
	if lo.Cmp(hi) > 0 {
		return nil, errors.New("empty range")
	}
	span := new(big.Int).Sub(hi, lo)
	span.Add(span, big.NewInt(1))
	offset, err := RandomBigInt(r, span)
	if err != nil {
		return nil, err
	}
	return offset.Add(offset, lo), nil
}

// ValidateSeedEntropy checks if a seed has sufficient entropy.
// It performs basic statistical tests to reject obviously weak seeds (e.g., all zeros, sequential).
// This is a sanity check, not a rigorous randomness test.
func ValidateSeedEntropy(seed []byte) error {
	if len(seed) < 32 {
		return errors.New("seed must be at least 32 bytes")
	}

	first := seed[0]
	allSame := true
	for i := 1; i < len(seed); i++ {
		if seed[i] != first {
			allSame = false
			break
		}
	}
	if allSame {
		return errors.New("seed has low entropy: all bytes are identical")
	}

	isAscending := true
	isDescending := true
	for i := 1; i < len(seed); i++ {
		if seed[i] != byte((int(seed[i-1])+1)%256) {
			isAscending = false
		}
		if seed[i] != byte((int(seed[i-1])-1+256)%256) {
			isDescending = false
		}
		if !isAscending && !isDescending {
			break
		}
	}
	if isAscending || isDescending {
		return errors.New("seed has low entropy: sequential pattern detected")
	}

	unique := make(map[byte]struct{})
	for _, b := range seed {
		unique[b] = struct{}{}
		if len(unique) >= 8 {
			break
		}
	}
	if len(unique) < 8 {
		return errors.New("seed has low entropy: insufficient byte diversity")
	}

	return nil
}

// ConstantTimeEqual compares two byte slices in constant time.
// It returns true if the slices are equal, false otherwise.
// This function leaks only the length of the slices.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zeroize overwrites a byte slice with zeros.
// Uses runtime.KeepAlive to prevent compiler optimization from eliminating the stores.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// ZeroizeBig clears the limbs backing x and sets it to zero. Copies made by
// earlier arithmetic are out of reach; this only scrubs x itself.
func ZeroizeBig(xs ...*big.Int) {
	for _, x := range xs {
		if x == nil {
			continue
		}
		words := x.Bits()
		for i := range words {
			words[i] = 0
		}
		runtime.KeepAlive(words)
		x.SetInt64(0)
	}
}
