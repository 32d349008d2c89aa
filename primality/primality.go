// Package primality implements the Miller-Rabin probabilistic primality test
// over arbitrary-precision integers.
//
// A true result means "probably prime": a composite passes r rounds with
// probability at most 4^-r. A false result is always correct.
package primality

import (
	"fmt"
	"io"
	"math"
	"math/big"

	"github.com/BackendStack21/trsa-go/core"
	"github.com/BackendStack21/trsa-go/utils"
)

// DefaultRounds is the round count used when generating primes.
const DefaultRounds = core.DefaultRounds

// SmallPrimes are trial-divided before any Miller-Rabin round runs.
var SmallPrimes = []int64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)
)

// IsProbablePrime reports whether n passes trial division by SmallPrimes and
// rounds Miller-Rabin rounds with bases drawn from random in [2, n-2].
// A nil random uses utils.RandReader. The error is non-nil only for an
// invalid round count or a failing random source.
func IsProbablePrime(n *big.Int, rounds int, random io.Reader) (bool, error) {
	if err := core.ValidateRounds(rounds); err != nil {
		return false, err
	}
	if n == nil || n.Cmp(bigTwo) < 0 {
		return false, nil
	}
	if divisible, isSmall := TrialDivide(n); divisible {
		return isSmall, nil
	}
	if random == nil {
		random = utils.RandReader
	}

	// Everything reaching this point is at least 31, so [2, n-2] is never empty.
	d, s := Decompose(n)
	hi := new(big.Int).Sub(n, bigTwo)
	for i := 0; i < rounds; i++ {
		a, err := utils.RandomInRange(random, bigTwo, hi)
		if err != nil {
			return false, fmt.Errorf("drawing Miller-Rabin base: %w", err)
		}
		if Witness(n, a, d, s) {
			return false, nil
		}
	}
	return true, nil
}

// TrialDivide checks n against SmallPrimes. divisible is true when one of
// them divides n; isSmall is then true only if n is that prime itself.
func TrialDivide(n *big.Int) (divisible, isSmall bool) {
	var rem, p big.Int
	for _, sp := range SmallPrimes {
		p.SetInt64(sp)
		if rem.Mod(n, &p).Sign() == 0 {
			return true, n.Cmp(&p) == 0
		}
	}
	return false, false
}

// Decompose writes n-1 as d*2^s with d odd. n must be odd and at least 3.
func Decompose(n *big.Int) (d *big.Int, s int) {
	d = new(big.Int).Sub(n, bigOne)
	s = int(d.TrailingZeroBits())
	d.Rsh(d, uint(s))
	return d, s
}

// Witness reports whether a proves n composite, given n-1 = d*2^s.
//
// x = a^d mod n; x == 1 or x == n-1 proves nothing. Otherwise x is squared
// up to s-1 times; reaching n-1 proves nothing, never reaching it does.
func Witness(n, a, d *big.Int, s int) bool {
	nMinusOne := new(big.Int).Sub(n, bigOne)
	x := new(big.Int).Exp(a, d, n)
	if x.Cmp(bigOne) == 0 || x.Cmp(nMinusOne) == 0 {
		return false
	}
	for r := 1; r < s; r++ {
		x.Mul(x, x).Mod(x, n)
		if x.Cmp(nMinusOne) == 0 {
			return false
		}
	}
	return true
}

// ErrorBound returns the worst-case false-positive probability, 4^-rounds.
func ErrorBound(rounds int) float64 {
	if rounds <= 0 {
		return 1
	}
	return math.Pow(4, -float64(rounds))
}
