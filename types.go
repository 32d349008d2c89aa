package trsa

import (
	"math/big"

	"github.com/BackendStack21/trsa-go/utils"
)

// KeySize names a parameter set by its modulus length.
type KeySize string

const (
	// Demo is a 512-bit modulus, the size used by the interactive demo.
	Demo KeySize = "RSA-512"
	// KeySize1024 is a 1024-bit modulus.
	KeySize1024 KeySize = "RSA-1024"
	// KeySize2048 is a 2048-bit modulus.
	KeySize2048 KeySize = "RSA-2048"
	// KeySize3072 is a 3072-bit modulus.
	KeySize3072 KeySize = "RSA-3072"
	// KeySize4096 is a 4096-bit modulus.
	KeySize4096 KeySize = "RSA-4096"
)

// DomainFingerprint separates public-key fingerprints from other SHA3 uses.
const DomainFingerprint = "trsa-pk-fingerprint-v1"

// =============================================================================
// Parameter Types
// =============================================================================

// Params contains the complete parameter set for a key size.
type Params struct {
	Size KeySize `json:"size"`

	// Bits is the modulus length.
	Bits int `json:"bits"`

	// Rounds is the Miller-Rabin round count per candidate.
	Rounds int `json:"rounds"`

	// MaxAttempts is the draw budget per search; 0 derives it from Bits.
	MaxAttempts int `json:"max_attempts"`

	// PublicExponent is the preferred e.
	PublicExponent int `json:"public_exponent"`

	// VerifyRounds is the round count used to re-check generated primes.
	VerifyRounds int `json:"verify_rounds"`
}

// =============================================================================
// Key Types
// =============================================================================

// PublicKey is the pair (n, e).
type PublicKey struct {
	N *big.Int
	E *big.Int
}

// PrivateKey is the pair (n, d).
type PrivateKey struct {
	N *big.Int
	D *big.Int
}

// KeyPair holds a public and a private key sharing one modulus.
type KeyPair struct {
	PublicKey  PublicKey
	PrivateKey PrivateKey
}

// Size returns the bit length of the modulus.
func (pk *PublicKey) Size() int {
	if pk == nil || pk.N == nil {
		return 0
	}
	return pk.N.BitLen()
}

// MaxMessageLen returns the longest message, in bytes, that is encodable for
// any content. Longer messages may still fit when their leading byte is small.
func (pk *PublicKey) MaxMessageLen() int {
	bits := pk.Size()
	if bits < 9 {
		return 0
	}
	return (bits - 1) / 8
}

// Validate reports ErrInvalidKey when the key cannot be used for encryption.
func (pk *PublicKey) Validate() error {
	if pk == nil || pk.N == nil || pk.E == nil {
		return ErrInvalidKey
	}
	if pk.N.Cmp(bigThree) < 0 || pk.E.Cmp(bigOne) <= 0 {
		return ErrInvalidKey
	}
	return nil
}

// Fingerprint returns a domain-separated SHA3-256 digest of (n, e).
func (pk *PublicKey) Fingerprint() []byte {
	if pk == nil || pk.N == nil || pk.E == nil {
		return nil
	}
	return utils.HashWithDomain(DomainFingerprint, utils.HashConcat(pk.N.Bytes(), pk.E.Bytes()))
}

// Clone returns a deep copy of the key.
func (pk *PublicKey) Clone() PublicKey {
	return PublicKey{N: cloneInt(pk.N), E: cloneInt(pk.E)}
}

// Validate reports ErrInvalidKey when the key cannot be used for decryption.
func (sk *PrivateKey) Validate() error {
	if sk == nil || sk.N == nil || sk.D == nil {
		return ErrInvalidKey
	}
	if sk.N.Cmp(bigThree) < 0 || sk.D.Sign() <= 0 {
		return ErrInvalidKey
	}
	return nil
}

// Clone returns a deep copy of the key.
func (sk *PrivateKey) Clone() PrivateKey {
	return PrivateKey{N: cloneInt(sk.N), D: cloneInt(sk.D)}
}

var (
	bigOne   = big.NewInt(1)
	bigThree = big.NewInt(3)
)

func cloneInt(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
