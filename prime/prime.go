// Package prime generates random probable primes of an exact bit length.
package prime

import (
	"context"
	"fmt"
	"io"
	"math/big"

	trsa "github.com/BackendStack21/trsa-go"
	"github.com/BackendStack21/trsa-go/core"
	"github.com/BackendStack21/trsa-go/logging"
	"github.com/BackendStack21/trsa-go/primality"
	"github.com/BackendStack21/trsa-go/utils"
)

// config holds configuration for prime generation.
type config struct {
	random      io.Reader
	rounds      int
	maxAttempts int
	logger      logging.Logger
}

// Option configures a Generator.
type Option func(*config)

// WithRand sets the randomness source. It must be cryptographically secure
// outside of tests; the default is utils.RandReader.
func WithRand(r io.Reader) Option {
	return func(c *config) {
		c.random = r
	}
}

// WithRounds sets the Miller-Rabin round count per candidate.
func WithRounds(rounds int) Option {
	return func(c *config) {
		c.rounds = rounds
	}
}

// WithMaxAttempts bounds the number of candidates drawn per search.
// Zero selects core.AttemptBudget's default for the requested length.
func WithMaxAttempts(n int) Option {
	return func(c *config) {
		c.maxAttempts = n
	}
}

// WithLogger sets the logger. Prime values are never logged.
func WithLogger(l logging.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Generator draws probable primes with a fixed configuration.
// It holds no mutable state and is safe for concurrent use when its random
// source is.
type Generator struct {
	cfg config
}

// NewGenerator returns a Generator configured by opts.
func NewGenerator(opts ...Option) (*Generator, error) {
	cfg := config{
		random: utils.RandReader,
		rounds: primality.DefaultRounds,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.random == nil {
		cfg.random = utils.RandReader
	}
	if cfg.logger == nil {
		cfg.logger = logging.Nop()
	}
	if err := core.ValidateRounds(cfg.rounds); err != nil {
		return nil, err
	}
	if cfg.maxAttempts < 0 {
		return nil, fmt.Errorf("max attempts must not be negative, got %d", cfg.maxAttempts)
	}
	return &Generator{cfg: cfg}, nil
}

// Random returns the generator's randomness source.
func (g *Generator) Random() io.Reader {
	return g.cfg.random
}

// Budget returns the attempt budget for a search over bits-bit candidates.
func (g *Generator) Budget(bits int) int {
	return core.AttemptBudget(bits, g.cfg.maxAttempts)
}

// Generate returns a probable prime with exactly bits bits.
//
// Each attempt draws bits random bits, sets the top bit (exact length) and
// the bottom bit (odd), and runs the primality test. After Budget(bits)
// failed attempts it returns trsa.ErrGenerationExhausted.
func (g *Generator) Generate(bits int) (*big.Int, error) {
	if bits < 2 {
		return nil, fmt.Errorf("%w: %d", trsa.ErrInvalidBitLength, bits)
	}
	if err := utils.CheckLength(bits, utils.MaxPrimeBits); err != nil {
		return nil, fmt.Errorf("%w: %d: %v", trsa.ErrInvalidBitLength, bits, err)
	}

	ctx := context.Background()
	budget := g.Budget(bits)
	for attempt := 1; attempt <= budget; attempt++ {
		candidate, err := utils.RandomBits(g.cfg.random, bits)
		if err != nil {
			return nil, fmt.Errorf("drawing candidate: %w", err)
		}
		candidate.SetBit(candidate, bits-1, 1)
		candidate.SetBit(candidate, 0, 1)

		ok, err := primality.IsProbablePrime(candidate, g.cfg.rounds, g.cfg.random)
		if err != nil {
			return nil, err
		}
		if ok {
			g.cfg.logger.Debug(ctx, "prime found",
				"bits", bits,
				"attempts", attempt,
				logging.Redacted("prime"),
			)
			return candidate, nil
		}
	}

	g.cfg.logger.Warn(ctx, "prime search exhausted", "bits", bits, "attempts", budget)
	return nil, fmt.Errorf("%w: no %d-bit prime after %d attempts", trsa.ErrGenerationExhausted, bits, budget)
}

// Generate returns a probable prime with exactly bits bits using a
// Generator configured by opts.
func Generate(bits int, opts ...Option) (*big.Int, error) {
	g, err := NewGenerator(opts...)
	if err != nil {
		return nil, err
	}
	return g.Generate(bits)
}
