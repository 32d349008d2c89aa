// Package keys builds textbook RSA key pairs from two generated primes.
package keys

import (
	"context"
	"fmt"
	"io"
	"math/big"

	trsa "github.com/BackendStack21/trsa-go"
	"github.com/BackendStack21/trsa-go/core"
	"github.com/BackendStack21/trsa-go/logging"
	"github.com/BackendStack21/trsa-go/primality"
	"github.com/BackendStack21/trsa-go/prime"
	"github.com/BackendStack21/trsa-go/utils"
)

// DomainSeed separates the deterministic key stream from other SHAKE uses.
const DomainSeed = "trsa-keygen-seed-v1"

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)
)

// config holds configuration for key generation.
type config struct {
	random         io.Reader
	rounds         int
	verifyRounds   int
	maxAttempts    int
	publicExponent int
	logger         logging.Logger
}

// Option configures key generation.
type Option func(*config)

// WithRand sets the randomness source for primes, Miller-Rabin bases and the
// fallback exponent search.
func WithRand(r io.Reader) Option {
	return func(c *config) {
		c.random = r
	}
}

// WithRounds sets the Miller-Rabin round count per prime candidate.
func WithRounds(rounds int) Option {
	return func(c *config) {
		c.rounds = rounds
	}
}

// WithVerifyRounds sets the Miller-Rabin round count used to re-check p and q
// once they are drawn. It must be at least the per-candidate round count.
func WithVerifyRounds(rounds int) Option {
	return func(c *config) {
		c.verifyRounds = rounds
	}
}

// WithMaxAttempts bounds every randomized search: each prime, the re-draw of
// q and the fallback exponent search.
func WithMaxAttempts(n int) Option {
	return func(c *config) {
		c.maxAttempts = n
	}
}

// WithPublicExponent sets the preferred public exponent.
func WithPublicExponent(e int) Option {
	return func(c *config) {
		c.publicExponent = e
	}
}

// WithLogger sets the logger. Secret values are never logged.
func WithLogger(l logging.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithParams applies a parameter set from package core.
func WithParams(p trsa.Params) Option {
	return func(c *config) {
		c.rounds = p.Rounds
		c.verifyRounds = p.VerifyRounds
		c.maxAttempts = p.MaxAttempts
		c.publicExponent = p.PublicExponent
	}
}

// material is everything key generation computes. Only n, e and d leave
// this package; the rest is scrubbed.
type material struct {
	p, q, n, phi, e, d *big.Int
}

func (m *material) keyPair() *trsa.KeyPair {
	return &trsa.KeyPair{
		PublicKey:  trsa.PublicKey{N: new(big.Int).Set(m.n), E: new(big.Int).Set(m.e)},
		PrivateKey: trsa.PrivateKey{N: new(big.Int).Set(m.n), D: new(big.Int).Set(m.d)},
	}
}

func (m *material) wipe() {
	utils.ZeroizeBig(m.p, m.q, m.phi, m.d)
}

// GenerateKeyPair generates a key pair whose modulus is the product of two
// distinct primes of bits/2 bits each.
func GenerateKeyPair(bits int, opts ...Option) (*trsa.KeyPair, error) {
	m, err := generate(bits, opts...)
	if err != nil {
		return nil, err
	}
	kp := m.keyPair()
	m.wipe()
	return kp, nil
}

// GenerateKeyPairForSize generates a key pair for a named parameter set.
func GenerateKeyPairForSize(size trsa.KeySize, opts ...Option) (*trsa.KeyPair, error) {
	params, err := core.GetParams(size)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateParams(params); err != nil {
		return nil, err
	}
	return GenerateKeyPair(params.Bits, append([]Option{WithParams(params)}, opts...)...)
}

// GenerateKeyPairFromSeed generates a deterministic key pair from seed.
// The same bits and seed always produce the same key pair.
func GenerateKeyPairFromSeed(bits int, seed []byte, opts ...Option) (*trsa.KeyPair, error) {
	if err := utils.ValidateSeedEntropy(seed); err != nil {
		return nil, fmt.Errorf("%w: %v", trsa.ErrInvalidSeed, err)
	}
	stream := utils.NewShakeReader(DomainSeed, seed)
	return GenerateKeyPair(bits, append(opts[:len(opts):len(opts)], WithRand(stream))...)
}

func generate(bits int, opts ...Option) (*material, error) {
	cfg := config{
		random:         utils.RandReader,
		rounds:         core.DefaultRounds,
		verifyRounds:   core.DefaultVerifyRounds,
		publicExponent: core.DefaultPublicExponent,
		logger:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.Nop()
	}
	if err := core.ValidateKeyBits(bits); err != nil {
		return nil, err
	}
	if err := core.ValidateRounds(cfg.verifyRounds); err != nil {
		return nil, err
	}
	if cfg.verifyRounds < cfg.rounds {
		return nil, fmt.Errorf("%w: verify rounds %d below candidate rounds %d", trsa.ErrInvalidRounds, cfg.verifyRounds, cfg.rounds)
	}
	if cfg.publicExponent < 3 {
		return nil, fmt.Errorf("public exponent must be at least 3, got %d", cfg.publicExponent)
	}

	gen, err := prime.NewGenerator(
		prime.WithRand(cfg.random),
		prime.WithRounds(cfg.rounds),
		prime.WithMaxAttempts(cfg.maxAttempts),
		prime.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	half := bits / 2

	p, err := verifiedPrime(gen, half, cfg.verifyRounds, nil)
	if err != nil {
		return nil, fmt.Errorf("generating p: %w", err)
	}
	q, err := verifiedPrime(gen, half, cfg.verifyRounds, p)
	if err != nil {
		utils.ZeroizeBig(p)
		return nil, fmt.Errorf("generating q: %w", err)
	}

	m := &material{p: p, q: q}
	m.n = new(big.Int).Mul(p, q)
	pMinusOne := new(big.Int).Sub(p, bigOne)
	qMinusOne := new(big.Int).Sub(q, bigOne)
	m.phi = new(big.Int).Mul(pMinusOne, qMinusOne)
	utils.ZeroizeBig(pMinusOne, qMinusOne)

	m.e, err = ChoosePublicExponent(m.phi, big.NewInt(int64(cfg.publicExponent)), gen.Random(), gen.Budget(bits))
	if err != nil {
		m.wipe()
		return nil, err
	}
	m.d, err = ModInverse(m.e, m.phi)
	if err != nil {
		m.wipe()
		return nil, err
	}

	cfg.logger.Debug(ctx, "key pair generated",
		"bits", bits,
		"modulus_bits", m.n.BitLen(),
		"e", m.e.String(),
		logging.Redacted("d"),
	)
	return m, nil
}

// verifiedPrime draws primes until one passes a second Miller-Rabin check
// with verifyRounds rounds and differs from exclude, within the generator's
// attempt budget.
func verifiedPrime(gen *prime.Generator, bits, verifyRounds int, exclude *big.Int) (*big.Int, error) {
	budget := gen.Budget(bits)
	for i := 0; i < budget; i++ {
		x, err := gen.Generate(bits)
		if err != nil {
			return nil, err
		}
		if exclude != nil && x.Cmp(exclude) == 0 {
			continue
		}
		ok, err := primality.IsProbablePrime(x, verifyRounds, gen.Random())
		if err != nil {
			return nil, err
		}
		if ok {
			return x, nil
		}
	}
	return nil, fmt.Errorf("%w: no verified %d-bit prime after %d draws", trsa.ErrGenerationExhausted, bits, budget)
}

// ChoosePublicExponent returns preferred when 1 < preferred < phi and
// gcd(preferred, phi) = 1. Otherwise it draws candidates uniformly from
// [2, phi-1] until one is coprime to phi, giving up after maxAttempts draws.
func ChoosePublicExponent(phi, preferred *big.Int, random io.Reader, maxAttempts int) (*big.Int, error) {
	if phi == nil || phi.Cmp(bigTwo) <= 0 {
		return nil, fmt.Errorf("%w: phi must exceed 2", trsa.ErrInvalidModulus)
	}
	if preferred != nil && preferred.Cmp(bigOne) > 0 && preferred.Cmp(phi) < 0 && coprime(preferred, phi) {
		return new(big.Int).Set(preferred), nil
	}
	if random == nil {
		random = utils.RandReader
	}

	hi := new(big.Int).Sub(phi, bigOne)
	for i := 0; i < maxAttempts; i++ {
		e, err := utils.RandomInRange(random, bigTwo, hi)
		if err != nil {
			return nil, fmt.Errorf("drawing public exponent: %w", err)
		}
		if coprime(e, phi) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: no exponent coprime to phi after %d draws", trsa.ErrGenerationExhausted, maxAttempts)
}

func coprime(a, b *big.Int) bool {
	g, _, _ := ExtendedGCD(a, b)
	return g.Cmp(bigOne) == 0
}

// ExtendedGCD returns g = gcd(a, b) and Bézout coefficients x, y with
// a*x + b*y = g, for non-negative a and b.
//
// It recurses on (b mod a, a): from (b mod a)*x' + a*y' = g and
// b mod a = b - (b/a)*a it follows that x = y' - (b/a)*x' and y = x'.
func ExtendedGCD(a, b *big.Int) (g, x, y *big.Int) {
	if a.Sign() == 0 {
		return new(big.Int).Set(b), big.NewInt(0), big.NewInt(1)
	}
	quo, rem := new(big.Int).QuoRem(b, a, new(big.Int))
	g, x1, y1 := ExtendedGCD(rem, a)
	x = new(big.Int).Sub(y1, quo.Mul(quo, x1))
	return g, x, x1
}

// ModInverse returns x in [0, m) with a*x ≡ 1 (mod m). It fails with
// trsa.ErrInverseNotFound when gcd(a, m) != 1.
func ModInverse(a, m *big.Int) (*big.Int, error) {
	if m == nil || m.Cmp(bigOne) <= 0 || a == nil {
		return nil, fmt.Errorf("%w: modulus must exceed 1", trsa.ErrInverseNotFound)
	}
	aa := new(big.Int).Mod(a, m)
	g, x, _ := ExtendedGCD(aa, m)
	if g.Cmp(bigOne) != 0 {
		return nil, fmt.Errorf("%w: gcd(%s, %s) = %s", trsa.ErrInverseNotFound, a, m, g)
	}
	return x.Mod(x, m), nil
}

// ValidateKeyPair checks that both halves share a modulus, that the
// exponents are in range and that a probe value survives a round trip.
func ValidateKeyPair(kp *trsa.KeyPair) error {
	if kp == nil {
		return trsa.ErrInvalidKey
	}
	pk, sk := &kp.PublicKey, &kp.PrivateKey
	if err := pk.Validate(); err != nil {
		return err
	}
	if err := sk.Validate(); err != nil {
		return err
	}
	if pk.N.Cmp(sk.N) != 0 {
		return fmt.Errorf("%w: public and private modulus differ", trsa.ErrInvalidKey)
	}
	if pk.E.Cmp(pk.N) >= 0 || sk.D.Cmp(bigOne) <= 0 || sk.D.Cmp(sk.N) >= 0 {
		return fmt.Errorf("%w: exponent not below modulus", trsa.ErrInvalidKey)
	}

	probe := big.NewInt(2)
	c := new(big.Int).Exp(probe, pk.E, pk.N)
	if c.Exp(c, sk.D, sk.N).Cmp(probe) != 0 {
		return fmt.Errorf("%w: probe round trip failed", trsa.ErrInvalidKey)
	}
	return nil
}
