package keys

import (
	"bytes"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trsa "github.com/BackendStack21/trsa-go"
	"github.com/BackendStack21/trsa-go/core"
	"github.com/BackendStack21/trsa-go/logging"
	"github.com/BackendStack21/trsa-go/primality"
	"github.com/BackendStack21/trsa-go/utils"
)

var testSeed = []byte("0123456789abcdef-trsa-keys-test-seed-with-enough-entropy")

func TestGenerate_KeyProperties(t *testing.T) {
	for _, bits := range []int{8, 16, 32, 64, 128, 512} {
		m, err := generate(bits)
		require.NoError(t, err, "bits=%d", bits)

		assert.NotEqual(t, 0, m.p.Cmp(m.q), "p and q must differ")
		assert.Equal(t, bits/2, m.p.BitLen())
		assert.Equal(t, bits/2, m.q.BitLen())
		assert.Equal(t, 0, new(big.Int).Mul(m.p, m.q).Cmp(m.n), "n must equal p*q")

		phi := new(big.Int).Mul(new(big.Int).Sub(m.p, bigOne), new(big.Int).Sub(m.q, bigOne))
		assert.Equal(t, 0, phi.Cmp(m.phi))

		ed := new(big.Int).Mul(m.e, m.d)
		assert.Equal(t, int64(1), ed.Mod(ed, phi).Int64(), "e*d mod phi must be 1")

		assert.True(t, m.e.Cmp(bigOne) > 0 && m.e.Cmp(phi) < 0, "1 < e < phi")
		assert.Equal(t, 0, new(big.Int).GCD(nil, nil, m.e, phi).Cmp(bigOne))

		for _, f := range []*big.Int{m.p, m.q} {
			ok, err := primality.IsProbablePrime(f, core.DefaultVerifyRounds, nil)
			require.NoError(t, err)
			assert.True(t, ok, "factor %s is not prime", f)
		}
	}
}

func TestGenerate_PrefersF4(t *testing.T) {
	m, err := generate(512)
	require.NoError(t, err)

	f4 := big.NewInt(core.DefaultPublicExponent)
	if new(big.Int).GCD(nil, nil, f4, m.phi).Cmp(bigOne) == 0 {
		assert.Equal(t, 0, m.e.Cmp(f4))
	} else {
		assert.NotEqual(t, 0, m.e.Cmp(f4))
	}

	kp := m.keyPair()
	assert.Equal(t, 0, kp.PublicKey.N.Cmp(kp.PrivateKey.N))
	assert.NoError(t, ValidateKeyPair(kp))

	// The modulus is the product of two 256-bit primes.
	assert.Contains(t, []int{511, 512}, kp.PublicKey.Size())
}

func TestGenerateKeyPair_SmallKeyFallsBackToRandomExponent(t *testing.T) {
	// With 4-bit primes phi is at most 168, so 65537 can never be used.
	kp, err := GenerateKeyPair(8)
	require.NoError(t, err)
	assert.True(t, kp.PublicKey.E.Cmp(big.NewInt(core.DefaultPublicExponent)) < 0)
	assert.NoError(t, ValidateKeyPair(kp))
}

func TestGenerateKeyPair_KeysDoNotAlias(t *testing.T) {
	kp, err := GenerateKeyPair(64)
	require.NoError(t, err)
	kp.PublicKey.N.SetInt64(0)
	assert.NotZero(t, kp.PrivateKey.N.Sign(), "public and private modulus must not share storage")
}

func TestGenerateKeyPair_InvalidModulus(t *testing.T) {
	for _, bits := range []int{-8, 0, 7, 513, 4, 6, core.MaxKeyBits + 2} {
		_, err := GenerateKeyPair(bits)
		assert.ErrorIs(t, err, trsa.ErrInvalidModulus, "bits=%d", bits)
	}
}

func TestGenerateKeyPair_InvalidOptions(t *testing.T) {
	_, err := GenerateKeyPair(64, WithRounds(0))
	assert.ErrorIs(t, err, trsa.ErrInvalidRounds)

	_, err = GenerateKeyPair(64, WithPublicExponent(1))
	assert.Error(t, err)
}

func TestGenerateKeyPair_Exhausted(t *testing.T) {
	// 0x00 becomes the 8-bit candidate 129 = 3 * 43 on every draw.
	zeros := bytes.NewReader(make([]byte, 64))
	_, err := GenerateKeyPair(16, WithRand(zeros), WithMaxAttempts(1))
	assert.ErrorIs(t, err, trsa.ErrGenerationExhausted)
}

func TestGenerateKeyPair_CustomExponent(t *testing.T) {
	kp, err := GenerateKeyPair(256, WithPublicExponent(3), WithRounds(12))
	require.NoError(t, err)
	// 3 is kept only when it is coprime to phi; otherwise a random e is drawn.
	assert.NoError(t, ValidateKeyPair(kp))
}

func TestGenerateKeyPairForSize(t *testing.T) {
	kp, err := GenerateKeyPairForSize(trsa.Demo)
	require.NoError(t, err)
	assert.NoError(t, ValidateKeyPair(kp))

	_, err = GenerateKeyPairForSize("RSA-1")
	assert.Error(t, err)
}

func TestGenerateKeyPairFromSeed_Deterministic(t *testing.T) {
	kp1, err := GenerateKeyPairFromSeed(256, testSeed)
	require.NoError(t, err)
	kp2, err := GenerateKeyPairFromSeed(256, testSeed)
	require.NoError(t, err)

	assert.Equal(t, 0, kp1.PublicKey.N.Cmp(kp2.PublicKey.N))
	assert.Equal(t, 0, kp1.PrivateKey.D.Cmp(kp2.PrivateKey.D))
	assert.Equal(t, kp1.PublicKey.Fingerprint(), kp2.PublicKey.Fingerprint())

	other := append([]byte{}, testSeed...)
	other[0] ^= 0xFF
	kp3, err := GenerateKeyPairFromSeed(256, other)
	require.NoError(t, err)
	assert.NotEqual(t, 0, kp1.PublicKey.N.Cmp(kp3.PublicKey.N))
}

func TestGenerateKeyPairFromSeed_WeakSeed(t *testing.T) {
	_, err := GenerateKeyPairFromSeed(256, make([]byte, 10))
	assert.ErrorIs(t, err, trsa.ErrInvalidSeed)

	_, err = GenerateKeyPairFromSeed(256, make([]byte, 32))
	assert.ErrorIs(t, err, trsa.ErrInvalidSeed)
}

func TestGenerateKeyPairFromSeed_KeepsCallerOptions(t *testing.T) {
	opts := make([]Option, 1, 4)
	opts[0] = WithLogger(logging.Nop())
	_, err := GenerateKeyPairFromSeed(64, testSeed, opts...)
	require.NoError(t, err)
	assert.Nil(t, opts[:2][1], "spare capacity of the caller's slice must stay untouched")
}

func TestGenerate_VerifyRounds(t *testing.T) {
	params, err := core.ParamsForBits(128)
	require.NoError(t, err)
	run := func(opts ...Option) *material {
		stream := utils.NewShakeReader("verify-rounds-test", testSeed)
		m, err := generate(128, append(opts, WithRand(stream))...)
		require.NoError(t, err)
		return m
	}

	params.VerifyRounds = 8
	low := run(WithParams(params))
	params.VerifyRounds = 64
	high := run(WithParams(params))
	direct := run(
		WithRounds(params.Rounds),
		WithMaxAttempts(params.MaxAttempts),
		WithPublicExponent(params.PublicExponent),
		WithVerifyRounds(64),
	)

	// p is fixed before its re-check; the extra bases shift every later draw.
	assert.Equal(t, 0, low.p.Cmp(high.p))
	assert.NotEqual(t, 0, low.q.Cmp(high.q))
	assert.NotEqual(t, 0, low.n.Cmp(high.n))
	assert.Equal(t, 0, high.n.Cmp(direct.n))
}

func TestGenerate_InvalidVerifyRounds(t *testing.T) {
	_, err := generate(64, WithVerifyRounds(0))
	assert.ErrorIs(t, err, trsa.ErrInvalidRounds)

	_, err = generate(64, WithVerifyRounds(300))
	assert.ErrorIs(t, err, trsa.ErrInvalidRounds)

	_, err = generate(64, WithRounds(16), WithVerifyRounds(8))
	assert.ErrorIs(t, err, trsa.ErrInvalidRounds)

	params := core.DemoParams
	params.VerifyRounds = 0
	_, err = GenerateKeyPair(64, WithParams(params))
	assert.ErrorIs(t, err, trsa.ErrInvalidRounds)
}

func TestGenerateKeyPair_LogsWithoutSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewText(&buf, slog.LevelDebug)

	m, err := generate(128, WithLogger(logger), WithRand(utils.NewShakeReader("log-test", testSeed)))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "key pair generated")
	assert.Contains(t, out, "prime found")
	assert.NotContains(t, out, m.p.String())
	assert.NotContains(t, out, m.q.String())
	assert.NotContains(t, out, m.d.String())
}

func TestChoosePublicExponent(t *testing.T) {
	phi := big.NewInt(3120) // (61-1)*(53-1)

	e, err := ChoosePublicExponent(phi, big.NewInt(17), nil, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(17), e.Int64())

	// 65537 > phi, so a random coprime exponent is drawn instead.
	e, err = ChoosePublicExponent(phi, big.NewInt(65537), nil, 100)
	require.NoError(t, err)
	assert.True(t, e.Cmp(bigTwo) >= 0 && e.Cmp(phi) < 0)
	assert.Equal(t, int64(1), new(big.Int).GCD(nil, nil, e, phi).Int64())

	// 5 divides 3120, so it is rejected.
	e, err = ChoosePublicExponent(phi, big.NewInt(5), nil, 100)
	require.NoError(t, err)
	assert.NotEqual(t, int64(5), e.Int64())

	_, err = ChoosePublicExponent(big.NewInt(2), big.NewInt(3), nil, 100)
	assert.ErrorIs(t, err, trsa.ErrInvalidModulus)

	// 5 is the only value in [2, 5] coprime to 6.
	e, err = ChoosePublicExponent(big.NewInt(6), nil, nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(5), e.Int64())

	_, err = ChoosePublicExponent(big.NewInt(4), nil, nil, 0)
	assert.ErrorIs(t, err, trsa.ErrGenerationExhausted)
}

func TestExtendedGCD(t *testing.T) {
	cases := []struct {
		a, b, g int64
	}{
		{240, 46, 2},
		{17, 3120, 1},
		{0, 7, 7},
		{7, 0, 7},
		{65537, 3120, 1},
		{12, 18, 6},
	}
	for _, tc := range cases {
		a, b := big.NewInt(tc.a), big.NewInt(tc.b)
		g, x, y := ExtendedGCD(a, b)
		assert.Equal(t, tc.g, g.Int64(), "gcd(%d, %d)", tc.a, tc.b)

		// Bézout identity: a*x + b*y == g
		lhs := new(big.Int).Mul(a, x)
		lhs.Add(lhs, new(big.Int).Mul(b, y))
		assert.Equal(t, 0, lhs.Cmp(g), "bezout for (%d, %d)", tc.a, tc.b)
	}
}

func TestExtendedGCD_Large(t *testing.T) {
	kp, err := GenerateKeyPairFromSeed(1024, testSeed)
	require.NoError(t, err)
	a, b := kp.PublicKey.N, kp.PrivateKey.D
	g, x, y := ExtendedGCD(a, b)
	lhs := new(big.Int).Mul(a, x)
	lhs.Add(lhs, new(big.Int).Mul(b, y))
	assert.Equal(t, 0, lhs.Cmp(g))
	assert.Equal(t, 0, g.Cmp(new(big.Int).GCD(nil, nil, a, b)))
}

func TestModInverse(t *testing.T) {
	d, err := ModInverse(big.NewInt(17), big.NewInt(3120))
	require.NoError(t, err)
	assert.Equal(t, int64(2753), d.Int64())

	// Negative and oversized inputs are reduced first.
	d, err = ModInverse(big.NewInt(-3), big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, int64(2), d.Int64())

	d, err = ModInverse(big.NewInt(10), big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, int64(5), d.Int64())

	_, err = ModInverse(big.NewInt(6), big.NewInt(9))
	assert.ErrorIs(t, err, trsa.ErrInverseNotFound)

	_, err = ModInverse(big.NewInt(3), big.NewInt(1))
	assert.ErrorIs(t, err, trsa.ErrInverseNotFound)
}

func TestModInverse_AgreesWithStdlib(t *testing.T) {
	m := big.NewInt(1009 * 1013)
	for a := int64(1); a < 2000; a++ {
		x := big.NewInt(a)
		want := new(big.Int).ModInverse(x, m)
		got, err := ModInverse(x, m)
		if want == nil {
			assert.ErrorIs(t, err, trsa.ErrInverseNotFound, "a=%d", a)
			continue
		}
		require.NoError(t, err, "a=%d", a)
		assert.Equal(t, 0, want.Cmp(got), "a=%d", a)
	}
}

func TestValidateKeyPair(t *testing.T) {
	assert.ErrorIs(t, ValidateKeyPair(nil), trsa.ErrInvalidKey)
	assert.ErrorIs(t, ValidateKeyPair(&trsa.KeyPair{}), trsa.ErrInvalidKey)

	kp, err := GenerateKeyPair(128)
	require.NoError(t, err)
	require.NoError(t, ValidateKeyPair(kp))

	broken := &trsa.KeyPair{PublicKey: kp.PublicKey.Clone(), PrivateKey: kp.PrivateKey.Clone()}
	broken.PrivateKey.D.Add(broken.PrivateKey.D, bigOne)
	assert.ErrorIs(t, ValidateKeyPair(broken), trsa.ErrInvalidKey)

	mismatched := &trsa.KeyPair{PublicKey: kp.PublicKey.Clone(), PrivateKey: kp.PrivateKey.Clone()}
	mismatched.PrivateKey.N.Add(mismatched.PrivateKey.N, bigTwo)
	assert.ErrorIs(t, ValidateKeyPair(mismatched), trsa.ErrInvalidKey)
}

func BenchmarkGenerateKeyPair1024(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := GenerateKeyPair(1024); err != nil {
			b.Fatal(err)
		}
	}
}
