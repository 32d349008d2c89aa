// Package trsa implements textbook RSA over arbitrary-precision integers.
// This package holds the types shared by the sub-packages: key material,
// named key sizes and the error values every operation reports.
//
// WARNING: textbook RSA has no padding and no side-channel protection. It is
// meant for teaching and testing. DO NOT use it to protect real data.
package trsa

// Version of the trsa Go implementation.
const Version = "1.0.0"

// API summary:
//
// Primality:
//   - primality.IsProbablePrime(n, rounds, random) - Miller-Rabin test
//
// Prime generation:
//   - prime.Generate(bits, opts...) - random prime with exactly bits bits
//
// Keys:
//   - keys.GenerateKeyPair(bits, opts...) - fresh key pair
//   - keys.GenerateKeyPairFromSeed(bits, seed) - deterministic key pair
//   - keys.ModInverse(a, m) - modular inverse via extended Euclid
//
// Cipher:
//   - cipher.Encrypt(message, pk) - m^e mod n
//   - cipher.Decrypt(ciphertext, sk) - c^d mod n
//
// Parameters:
//   - core.GetParams(size) - parameter set for a named key size
