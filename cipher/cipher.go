// Package cipher implements textbook RSA encryption and decryption.
//
// There is no padding: the message bytes are read as one big-endian integer
// m and the ciphertext is m^e mod n. Encryption is deterministic and
// malleable. Leading zero bytes of a message do not survive a round trip,
// since the integer encoding cannot distinguish them.
package cipher

import (
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	trsa "github.com/BackendStack21/trsa-go"
	"github.com/BackendStack21/trsa-go/utils"
)

// EncodeMessage interprets message as an unsigned big-endian integer.
func EncodeMessage(message []byte) *big.Int {
	return new(big.Int).SetBytes(message)
}

// DecodeMessage returns the minimal big-endian encoding of m.
// Zero decodes to an empty slice.
func DecodeMessage(m *big.Int) []byte {
	if m == nil {
		return []byte{}
	}
	return m.Bytes()
}

// Encrypt returns m^e mod n for the integer encoding m of message.
// It fails with trsa.ErrMessageTooLarge when m >= n.
func Encrypt(message []byte, pub *trsa.PublicKey) (*big.Int, error) {
	if err := pub.Validate(); err != nil {
		return nil, err
	}
	if err := utils.CheckLength(len(message), utils.MaxMessageSize); err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %v", trsa.ErrMessageTooLarge, len(message), err)
	}

	m := EncodeMessage(message)
	if m.Cmp(pub.N) >= 0 {
		return nil, fmt.Errorf("%w: message integer has %d bits, modulus has %d",
			trsa.ErrMessageTooLarge, m.BitLen(), pub.N.BitLen())
	}
	return m.Exp(m, pub.E, pub.N), nil
}

// Decrypt returns the minimal big-endian bytes of c^d mod n.
// c must lie in [0, n).
func Decrypt(c *big.Int, priv *trsa.PrivateKey) ([]byte, error) {
	if err := priv.Validate(); err != nil {
		return nil, err
	}
	if c == nil || c.Sign() < 0 || c.Cmp(priv.N) >= 0 {
		return nil, trsa.ErrCiphertextOutOfRange
	}
	m := new(big.Int).Exp(c, priv.D, priv.N)
	out := DecodeMessage(m)
	utils.ZeroizeBig(m)
	return out, nil
}

// EncryptString encrypts the UTF-8 bytes of s.
func EncryptString(s string, pub *trsa.PublicKey) (*big.Int, error) {
	return Encrypt([]byte(s), pub)
}

// DecryptString decrypts c and returns the plaintext as text. Byte
// sequences that are not valid UTF-8 are dropped.
func DecryptString(c *big.Int, priv *trsa.PrivateKey) (string, error) {
	b, err := Decrypt(c, priv)
	if err != nil {
		return "", err
	}
	s := string(b)
	utils.Zeroize(b)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s, nil
}

// FormatCiphertext renders c as lower-case hex with a 0x prefix.
func FormatCiphertext(c *big.Int) string {
	if c == nil {
		return "0x0"
	}
	return "0x" + c.Text(16)
}

// ParseCiphertext parses hex text with or without a 0x prefix.
// Surrounding whitespace is ignored.
func ParseCiphertext(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if err := utils.CheckLength(len(s), utils.MaxCiphertextTextLen); err != nil {
		return nil, fmt.Errorf("ciphertext text of %d bytes: %w", len(s), err)
	}
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if s == "" || s[0] == '+' || s[0] == '-' || strings.Contains(s, "_") {
		return nil, fmt.Errorf("invalid ciphertext %q", truncate(s))
	}
	c, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid ciphertext %q", truncate(s))
	}
	return c, nil
}

func truncate(s string) string {
	const limit = 32
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
