package primality

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trsa "github.com/BackendStack21/trsa-go"
	"github.com/BackendStack21/trsa-go/utils"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy source failed")
}

func mustInt(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad literal %q", s)
	return n
}

func TestIsProbablePrime_KnownPrimes(t *testing.T) {
	for _, p := range []int64{2, 3, 5, 29, 31, 97, 7919, 65537, 2147483647} {
		ok, err := IsProbablePrime(big.NewInt(p), DefaultRounds, nil)
		require.NoError(t, err)
		assert.True(t, ok, "%d should be probably prime", p)
	}

	// Mersenne primes M89 and M127.
	for _, s := range []string{
		"618970019642690137449562111",
		"170141183460469231731687303715884105727",
	} {
		ok, err := IsProbablePrime(mustInt(t, s), DefaultRounds, nil)
		require.NoError(t, err)
		assert.True(t, ok, s)
	}
}

func TestIsProbablePrime_KnownComposites(t *testing.T) {
	for _, c := range []int64{-7, 0, 1, 4, 9, 100, 561, 841, 961, 4033} {
		ok, err := IsProbablePrime(big.NewInt(c), 20, nil)
		require.NoError(t, err)
		assert.False(t, ok, "%d should be composite", c)
	}

	ok, err := IsProbablePrime(nil, 20, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	// M127 * M89 has no small factor; only Miller-Rabin can reject it.
	ok, err = IsProbablePrime(mustInt(t, "105312291668557186697918027513529248857806893649219117400977309697"), 20, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

// Carmichael numbers fool the Fermat test for every coprime base. These have
// no factor below 31, so trial division cannot catch them either.
func TestIsProbablePrime_CarmichaelNumbers(t *testing.T) {
	for _, c := range []int64{252601, 294409, 399001} {
		divisible, _ := TrialDivide(big.NewInt(c))
		require.False(t, divisible, "%d must get past trial division", c)

		ok, err := IsProbablePrime(big.NewInt(c), 16, nil)
		require.NoError(t, err)
		assert.False(t, ok, "Carmichael number %d passed", c)
	}
}

func TestIsProbablePrime_InvalidRounds(t *testing.T) {
	for _, rounds := range []int{0, -1, utils.MaxRounds + 1} {
		_, err := IsProbablePrime(big.NewInt(97), rounds, nil)
		assert.ErrorIs(t, err, trsa.ErrInvalidRounds)
	}
}

func TestIsProbablePrime_RandError(t *testing.T) {
	_, err := IsProbablePrime(big.NewInt(7919), DefaultRounds, failingReader{})
	assert.Error(t, err)

	// Small primes are settled by trial division and never touch the reader.
	ok, err := IsProbablePrime(big.NewInt(23), DefaultRounds, failingReader{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsProbablePrime_SeededReaderIsDeterministic(t *testing.T) {
	n := big.NewInt(7919)
	for i := 0; i < 3; i++ {
		r := utils.NewShakeReader("primality-test", []byte("fixed seed"))
		ok, err := IsProbablePrime(n, DefaultRounds, r)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestIsProbablePrime_AgreesWithStdlib(t *testing.T) {
	for n := int64(0); n < 3000; n++ {
		x := big.NewInt(n)
		ok, err := IsProbablePrime(x, 20, nil)
		require.NoError(t, err)
		assert.Equal(t, x.ProbablyPrime(20), ok, "n = %d", n)
	}
}

func TestTrialDivide(t *testing.T) {
	divisible, isSmall := TrialDivide(big.NewInt(29))
	assert.True(t, divisible)
	assert.True(t, isSmall)

	divisible, isSmall = TrialDivide(big.NewInt(561))
	assert.True(t, divisible)
	assert.False(t, isSmall)

	divisible, _ = TrialDivide(big.NewInt(31))
	assert.False(t, divisible)
}

func TestDecompose(t *testing.T) {
	d, s := Decompose(big.NewInt(561))
	assert.Equal(t, int64(35), d.Int64())
	assert.Equal(t, 4, s)

	d, s = Decompose(big.NewInt(4033))
	assert.Equal(t, int64(63), d.Int64())
	assert.Equal(t, 6, s)
}

func TestWitness(t *testing.T) {
	n := big.NewInt(561)
	d, s := Decompose(n)
	assert.True(t, Witness(n, big.NewInt(2), d, s), "2 is a witness for 561")

	// 4033 = 37 * 109 is a strong pseudoprime to base 2 but not to base 3.
	n = big.NewInt(4033)
	d, s = Decompose(n)
	assert.False(t, Witness(n, big.NewInt(2), d, s))
	assert.True(t, Witness(n, big.NewInt(3), d, s))

	// No base is a witness for a prime.
	n = big.NewInt(7919)
	d, s = Decompose(n)
	for a := int64(2); a < 100; a++ {
		assert.False(t, Witness(n, big.NewInt(a), d, s), "base %d", a)
	}
}

func TestErrorBound(t *testing.T) {
	assert.Equal(t, 1.0, ErrorBound(0))
	assert.Equal(t, 0.25, ErrorBound(1))
	assert.InDelta(t, 1.52587890625e-05, ErrorBound(DefaultRounds), 1e-15)
}

func BenchmarkIsProbablePrime_M127(b *testing.B) {
	n, _ := new(big.Int).SetString("170141183460469231731687303715884105727", 10)
	for i := 0; i < b.N; i++ {
		_, _ = IsProbablePrime(n, DefaultRounds, nil)
	}
}
