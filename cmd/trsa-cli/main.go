// Package main provides the trsa-cli command line interface for textbook RSA.
package main

import (
	"bufio"
	"crypto/hmac"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	trsa "github.com/BackendStack21/trsa-go"
	"github.com/BackendStack21/trsa-go/cipher"
	"github.com/BackendStack21/trsa-go/core"
	"github.com/BackendStack21/trsa-go/keys"
	"github.com/BackendStack21/trsa-go/logging"
	"github.com/BackendStack21/trsa-go/primality"
	"github.com/BackendStack21/trsa-go/prime"
	"github.com/BackendStack21/trsa-go/utils"
)

const (
	version = "1.0.0"
	appName = "trsa-cli"

	defaultBits    = 512
	defaultMessage = "Hello RSA"

	// MaxInputFileSize bounds key, message and ciphertext files.
	MaxInputFileSize = 1 << 20

	// maxIntegerText bounds decimal or hex integers read from the command line.
	maxIntegerText = 8192
)

// OutputFormat represents how integers are written.
type OutputFormat string

const (
	FormatHex OutputFormat = "hex"
	FormatDec OutputFormat = "dec"
)

// CLIConfig holds CLI configuration
type CLIConfig struct {
	Bits         int
	Rounds       int
	MaxAttempts  int
	OutputFormat OutputFormat
	OutputFile   string
	InputFile    string
	Verbose      bool
	Timing       bool
}

// KeyPairExport represents an exported key pair. D is empty in a public key file.
type KeyPairExport struct {
	Bits        int    `json:"bits"`
	N           string `json:"n"`
	E           string `json:"e"`
	D           string `json:"d,omitempty"`
	Fingerprint string `json:"fingerprint"`
	CreatedAt   string `json:"created_at"`
	KeyHMAC     string `json:"key_hmac,omitempty"` // HMAC binding d to (n, e)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "help", "--help", "-h":
		printUsage()
	case "version", "--version", "-v":
		fmt.Printf("%s version %s\n", appName, version)
		fmt.Printf("trsa library version %s\n", trsa.Version)
	case "keygen":
		handleKeygen(args)
	case "encrypt":
		handleEncrypt(args)
	case "decrypt":
		handleDecrypt(args)
	case "prime":
		handlePrime(args)
	case "isprime":
		handleIsPrime(args)
	case "demo":
		handleDemo(args, os.Stdin)
	case "benchmark":
		handleBenchmark(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - textbook RSA CLI

WARNING: textbook RSA has no padding. Use it for learning only.

USAGE:
    %s <COMMAND> [OPTIONS]

COMMANDS:
    keygen      Generate a key pair
    encrypt     Encrypt a message with a key file
    decrypt     Decrypt a ciphertext with a key file
    prime       Generate a probable prime
    isprime     Test a number for primality
    demo        Generate keys, encrypt and decrypt interactively
    benchmark   Run performance benchmarks
    version     Show version information
    help        Show this help message

OPTIONS:
    -b, --bits <N>            Modulus or prime length in bits (default %d)
    -r, --rounds <R>          Miller-Rabin rounds (default %d)
    -a, --max-attempts <A>    Candidate budget per search (default: derived from bits)
    -e, --public-exponent <E> Preferred public exponent, a prime (default %d)
    -f, --format <hex|dec>    Integer output format (default hex)
    -o, --output <FILE>       Write output to FILE (mode 0600)
    -i, --input <FILE>        Read the message from FILE
    -k, --key <FILE>          Key file produced by keygen
    -m, --message <TEXT>      Message to encrypt
    -c, --ciphertext <HEX>    Ciphertext, or @FILE to read it from a file
    -n, --n <VALUE>           Number to test (decimal, or hex with 0x)
        --seed <HEX>          Derive the key pair deterministically from a seed
        --public              Omit the private exponent from the key file
    -t, --timing              Print timing to stderr
        --verbose             Debug logging on stderr

EXAMPLES:
    # Generate a 1024-bit key pair
    %s keygen --bits 1024 --output key.json

    # Encrypt and decrypt
    %s encrypt --key key.json --message "Hello RSA" --output ct.txt
    %s decrypt --key key.json --ciphertext @ct.txt

    # Primes
    %s prime --bits 256
    %s isprime --n 561
`, appName, appName, defaultBits, core.DefaultRounds, core.DefaultPublicExponent, appName, appName, appName, appName, appName)
}

func handleKeygen(args []string) {
	config := parseConfig(args)
	params := keyParams(args, config)
	opts := []keys.Option{
		keys.WithParams(params),
		keys.WithLogger(newLogger(config)),
	}

	var (
		kp  *trsa.KeyPair
		err error
	)
	start := time.Now()
	if seedHex := getArg(args, "--seed", ""); seedHex != "" {
		seed, decErr := hex.DecodeString(seedHex)
		if decErr != nil {
			fatalf("Error: invalid seed: %v\n", decErr)
		}
		kp, err = keys.GenerateKeyPairFromSeed(config.Bits, seed, opts...)
	} else {
		kp, err = keys.GenerateKeyPair(config.Bits, opts...)
	}
	elapsed := time.Since(start)

	if err != nil {
		fatalf("Error generating key pair: %v\n", err)
	}

	if config.Timing {
		fmt.Fprintf(os.Stderr, "Key generation took: %v\n", elapsed)
	}

	export := exportKeyPair(kp, config.Bits, config.OutputFormat, !hasFlag(args, "--public", ""))

	output, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		fatalf("Error marshaling output: %v\n", err)
	}

	writeOutput(output, config.OutputFile)

	if config.Verbose {
		fmt.Fprintf(os.Stderr, "Generated key pair: %d-bit modulus, e = %s\n", kp.PublicKey.Size(), kp.PublicKey.E)
		fmt.Fprintf(os.Stderr, "Fingerprint: %s\n", export.Fingerprint)
	}
}

func handleEncrypt(args []string) {
	config := parseConfig(args)

	keyFile := getArg(args, "--key", "-k")
	if keyFile == "" {
		fatalf("Error: --key is required\n")
	}
	export, err := loadKeyFile(keyFile)
	if err != nil {
		fatalf("Error loading key: %v\n", err)
	}
	pk, err := publicKeyFromExport(export)
	if err != nil {
		fatalf("Error loading public key: %v\n", err)
	}

	var message []byte
	if msg := getArg(args, "--message", "-m"); msg != "" {
		message = []byte(msg)
	} else if config.InputFile != "" {
		message, err = readInputFile(config.InputFile)
		if err != nil {
			fatalf("Error reading input file: %v\n", err)
		}
	} else {
		fatalf("Error: --message or --input is required\n")
	}

	start := time.Now()
	c, err := cipher.Encrypt(message, pk)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, trsa.ErrMessageTooLarge) {
			fatalf("Error: message does not fit a %d-bit modulus (at most %d bytes for arbitrary content)\n",
				pk.Size(), pk.MaxMessageLen())
		}
		fatalf("Error encrypting: %v\n", err)
	}

	if config.Timing {
		fmt.Fprintf(os.Stderr, "Encryption took: %v\n", elapsed)
	}

	writeOutput([]byte(cipher.FormatCiphertext(c)), config.OutputFile)
}

func handleDecrypt(args []string) {
	config := parseConfig(args)

	keyFile := getArg(args, "--key", "-k")
	if keyFile == "" {
		fatalf("Error: --key is required\n")
	}
	export, err := loadKeyFile(keyFile)
	if err != nil {
		fatalf("Error loading key: %v\n", err)
	}
	sk, err := privateKeyFromExport(export)
	if err != nil {
		fatalf("Error loading private key: %v\n", err)
	}

	ctText := getArg(args, "--ciphertext", "-c")
	if ctText == "" {
		fatalf("Error: --ciphertext is required\n")
	}
	if strings.HasPrefix(ctText, "@") {
		data, err := readInputFile(ctText[1:])
		if err != nil {
			fatalf("Error reading ciphertext file: %v\n", err)
		}
		ctText = string(data)
	}
	c, err := cipher.ParseCiphertext(ctText)
	if err != nil {
		fatalf("Error parsing ciphertext: %v\n", err)
	}

	start := time.Now()
	plaintext, err := cipher.DecryptString(c, sk)
	elapsed := time.Since(start)
	if err != nil {
		fatalf("Error decrypting: %v\n", err)
	}

	if config.Timing {
		fmt.Fprintf(os.Stderr, "Decryption took: %v\n", elapsed)
	}

	writeOutput([]byte(plaintext), config.OutputFile)
}

func handlePrime(args []string) {
	config := parseConfig(args)

	start := time.Now()
	p, err := prime.Generate(config.Bits,
		prime.WithRounds(config.Rounds),
		prime.WithMaxAttempts(config.MaxAttempts),
		prime.WithLogger(newLogger(config)),
	)
	elapsed := time.Since(start)
	if err != nil {
		fatalf("Error generating prime: %v\n", err)
	}

	if config.Timing {
		fmt.Fprintf(os.Stderr, "Prime generation took: %v\n", elapsed)
	}

	writeOutput([]byte(formatInt(p, config.OutputFormat)), config.OutputFile)
}

func handleIsPrime(args []string) {
	config := parseConfig(args)

	value := getArg(args, "--n", "-n")
	if value == "" {
		fatalf("Error: --n is required\n")
	}
	n, err := parseInt(value)
	if err != nil {
		fatalf("Error: %v\n", err)
	}

	ok, err := primality.IsProbablePrime(n, config.Rounds, nil)
	if err != nil {
		fatalf("Error testing primality: %v\n", err)
	}

	if ok {
		fmt.Println("probably prime")
	} else {
		fmt.Println("composite")
	}

	if config.Verbose && ok {
		fmt.Fprintf(os.Stderr, "Error bound after %d rounds: %g\n", config.Rounds, primality.ErrorBound(config.Rounds))
	}
}

func handleDemo(args []string, stdin io.Reader) {
	config := parseConfig(args)
	params := keyParams(args, config)

	fmt.Printf("Generating RSA keys (%d bits for demo)...\n", config.Bits)
	kp, err := keys.GenerateKeyPair(config.Bits,
		keys.WithParams(params),
		keys.WithLogger(newLogger(config)),
	)
	if err != nil {
		fatalf("Error generating key pair: %v\n", err)
	}

	fmt.Println("\nPublic key (n, e):")
	fmt.Printf("n = %s\ne = %s\n", kp.PublicKey.N, kp.PublicKey.E)
	fmt.Println("\nPrivate key (n, d):")
	fmt.Printf("n = %s\nd = %s\n", kp.PrivateKey.N, kp.PrivateKey.D)

	msg := getArg(args, "--message", "-m")
	if msg == "" {
		fmt.Printf("\nEnter a message to encrypt (or press Enter to use %q): ", defaultMessage)
		line, _ := bufio.NewReader(stdin).ReadString('\n')
		msg = strings.TrimRight(line, "\r\n")
		fmt.Println()
	}
	if msg == "" {
		msg = defaultMessage
	}

	c, err := cipher.EncryptString(msg, &kp.PublicKey)
	if err != nil {
		fatalf("Error encrypting: %v\n", err)
	}
	fmt.Println("\nCiphertext (hex):")
	fmt.Println(cipher.FormatCiphertext(c))

	plaintext, err := cipher.DecryptString(c, &kp.PrivateKey)
	if err != nil {
		fatalf("Error decrypting: %v\n", err)
	}
	fmt.Println("\nDecrypted plaintext:")
	fmt.Println(plaintext)
}

func handleBenchmark(args []string) {
	config := parseConfig(args)
	iterationsStr := getArg(args, "--iterations", "")

	iterations := 10
	if iterationsStr != "" {
		var err error
		if iterations, err = strconv.Atoi(iterationsStr); err != nil {
			fatalf("Error: invalid iteration count '%s'\n", iterationsStr)
		}
	}
	if err := utils.CheckPositive(iterations, "iterations"); err != nil {
		fatalf("Error: %v\n", err)
	}

	fmt.Printf("trsa Benchmark Results\n")
	fmt.Printf("======================\n")
	fmt.Printf("Modulus: %d bits\n", config.Bits)
	fmt.Printf("Iterations: %d\n\n", iterations)

	// Prime generation
	var primeTotal time.Duration
	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, err := prime.Generate(config.Bits/2, prime.WithRounds(config.Rounds))
		primeTotal += time.Since(start)
		if err != nil {
			fatalf("Prime generation error: %v\n", err)
		}
	}
	fmt.Printf("  Prime(%d): %v (avg)\n", config.Bits/2, primeTotal/time.Duration(iterations))

	// KeyGen
	var keygenTotal time.Duration
	var kp *trsa.KeyPair
	for i := 0; i < iterations; i++ {
		start := time.Now()
		var err error
		kp, err = keys.GenerateKeyPair(config.Bits,
			keys.WithRounds(config.Rounds),
			keys.WithVerifyRounds(max(core.DefaultVerifyRounds, config.Rounds)),
		)
		keygenTotal += time.Since(start)
		if err != nil {
			fatalf("Keygen error: %v\n", err)
		}
	}
	fmt.Printf("  KeyGen:     %v (avg)\n", keygenTotal/time.Duration(iterations))

	// Full-length random messages, the worst case for the integer encoding.
	message, err := utils.SecureRandomBytes(kp.PublicKey.MaxMessageLen())
	if err != nil {
		fatalf("Error generating message: %v\n", err)
	}

	var encryptTotal time.Duration
	var c *big.Int
	for i := 0; i < iterations; i++ {
		start := time.Now()
		var err error
		c, err = cipher.Encrypt(message, &kp.PublicKey)
		encryptTotal += time.Since(start)
		if err != nil {
			fatalf("Encrypt error: %v\n", err)
		}
	}
	fmt.Printf("  Encrypt:    %v (avg)\n", encryptTotal/time.Duration(iterations))

	var decryptTotal time.Duration
	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, err := cipher.Decrypt(c, &kp.PrivateKey)
		decryptTotal += time.Since(start)
		if err != nil {
			fatalf("Decrypt error: %v\n", err)
		}
	}
	fmt.Printf("  Decrypt:    %v (avg)\n", decryptTotal/time.Duration(iterations))

	fmt.Println()
	fmt.Println("Benchmark complete!")
}

func parseConfig(args []string) CLIConfig {
	config := CLIConfig{
		Bits:         defaultBits,
		Rounds:       core.DefaultRounds,
		OutputFormat: FormatHex,
	}

	var err error
	if s := getArg(args, "--bits", "-b"); s != "" {
		if config.Bits, err = strconv.Atoi(s); err != nil {
			fatalf("Error: invalid bit length '%s'\n", s)
		}
	}
	if s := getArg(args, "--rounds", "-r"); s != "" {
		if config.Rounds, err = strconv.Atoi(s); err != nil {
			fatalf("Error: invalid round count '%s'\n", s)
		}
	}
	if s := getArg(args, "--max-attempts", "-a"); s != "" {
		if config.MaxAttempts, err = strconv.Atoi(s); err != nil || config.MaxAttempts < 0 {
			fatalf("Error: invalid attempt budget '%s'\n", s)
		}
	}

	format := getArg(args, "--format", "-f")
	switch format {
	case "hex":
		config.OutputFormat = FormatHex
	case "dec":
		config.OutputFormat = FormatDec
	case "":
		// No format specified, use default
	default:
		fatalf("Error: invalid format '%s'. Must be one of: hex, dec\n", format)
	}

	config.OutputFile = getArg(args, "--output", "-o")
	config.InputFile = getArg(args, "--input", "-i")
	config.Verbose = hasFlag(args, "--verbose", "")
	config.Timing = hasFlag(args, "--timing", "-t")

	return config
}

func getArg(args []string, long, short string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == long || (short != "" && args[i] == short) {
			return args[i+1]
		}
	}
	return ""
}

func hasFlag(args []string, long, short string) bool {
	for _, arg := range args {
		if arg == long || (short != "" && arg == short) {
			return true
		}
	}
	return false
}

// keyParams derives the key generation parameters for config.Bits and
// applies the command line overrides.
func keyParams(args []string, config CLIConfig) trsa.Params {
	params, err := core.ParamsForBits(config.Bits)
	if err != nil {
		fatalf("Error: %v\n", err)
	}
	params.Rounds = config.Rounds
	params.MaxAttempts = config.MaxAttempts
	params.VerifyRounds = max(params.VerifyRounds, params.Rounds)
	if s := getArg(args, "--public-exponent", "-e"); s != "" {
		if params.PublicExponent, err = strconv.Atoi(s); err != nil {
			fatalf("Error: invalid public exponent '%s'\n", s)
		}
	}
	if err := core.ValidateParams(params); err != nil {
		fatalf("Error: %v\n", err)
	}
	return params
}

// newLogger returns a text logger on stderr: debug level with --verbose,
// warnings only otherwise.
func newLogger(config CLIConfig) logging.Logger {
	level := slog.LevelWarn
	if config.Verbose {
		level = slog.LevelDebug
	}
	return logging.NewText(os.Stderr, level).With("app", appName)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}

func formatInt(x *big.Int, format OutputFormat) string {
	if format == FormatDec {
		return x.String()
	}
	return "0x" + x.Text(16)
}

// parseInt accepts decimal, or hex with a 0x prefix.
func parseInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if err := utils.CheckLength(len(s), maxIntegerText); err != nil {
		return nil, fmt.Errorf("integer text of %d bytes: %w", len(s), err)
	}
	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base, digits = 16, s[2:]
	}
	if digits == "" || strings.ContainsAny(digits, "+_") {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	x, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return x, nil
}

// generateKeyHMAC binds the private exponent to the public part of a key
// file. Keyed by public data, it detects corruption, not tampering.
func generateKeyHMAC(export *KeyPairExport) string {
	h := hmac.New(sha3.New256, []byte(export.N+":"+export.E))
	h.Write([]byte(export.D))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func exportKeyPair(kp *trsa.KeyPair, bits int, format OutputFormat, includePrivate bool) *KeyPairExport {
	export := &KeyPairExport{
		Bits:        bits,
		N:           formatInt(kp.PublicKey.N, format),
		E:           formatInt(kp.PublicKey.E, format),
		Fingerprint: hex.EncodeToString(kp.PublicKey.Fingerprint()),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if includePrivate {
		export.D = formatInt(kp.PrivateKey.D, format)
		export.KeyHMAC = generateKeyHMAC(export)
	}
	return export
}

func loadKeyFile(filename string) (*KeyPairExport, error) {
	data, err := readInputFile(filename)
	if err != nil {
		return nil, err
	}
	var export KeyPairExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parsing key file: %w", err)
	}
	if export.D != "" {
		if export.KeyHMAC == "" {
			return nil, fmt.Errorf("%w: missing key HMAC", trsa.ErrInvalidKey)
		}
		expected := generateKeyHMAC(&export)
		if !hmac.Equal([]byte(expected), []byte(export.KeyHMAC)) {
			return nil, fmt.Errorf("%w: key HMAC mismatch", trsa.ErrInvalidKey)
		}
	}
	return &export, nil
}

func publicKeyFromExport(export *KeyPairExport) (*trsa.PublicKey, error) {
	n, err := parseInt(export.N)
	if err != nil {
		return nil, fmt.Errorf("n: %w", err)
	}
	e, err := parseInt(export.E)
	if err != nil {
		return nil, fmt.Errorf("e: %w", err)
	}
	pk := &trsa.PublicKey{N: n, E: e}
	if err := pk.Validate(); err != nil {
		return nil, err
	}
	if export.Fingerprint != "" {
		want, err := hex.DecodeString(export.Fingerprint)
		if err != nil || !utils.ConstantTimeEqual(want, pk.Fingerprint()) {
			return nil, fmt.Errorf("%w: fingerprint mismatch", trsa.ErrInvalidKey)
		}
	}
	return pk, nil
}

func privateKeyFromExport(export *KeyPairExport) (*trsa.PrivateKey, error) {
	if export.D == "" {
		return nil, fmt.Errorf("%w: key file has no private exponent", trsa.ErrInvalidKey)
	}
	pk, err := publicKeyFromExport(export)
	if err != nil {
		return nil, err
	}
	d, err := parseInt(export.D)
	if err != nil {
		return nil, fmt.Errorf("d: %w", err)
	}
	sk := &trsa.PrivateKey{N: pk.N, D: d}
	if err := sk.Validate(); err != nil {
		return nil, err
	}
	return sk, nil
}

func readInputFile(filename string) ([]byte, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > MaxInputFileSize {
		return nil, fmt.Errorf("input file too large: %d > %d bytes", info.Size(), MaxInputFileSize)
	}
	return os.ReadFile(filename)
}

func writeOutput(data []byte, filename string) {
	if filename == "" {
		fmt.Println(string(data))
		return
	}

	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		fatalf("Error creating output file: %v\n", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		fatalf("Error writing output file: %v\n", err)
	}

	// Enforce 0600 even under a permissive umask.
	if err := os.Chmod(filename, 0600); err != nil {
		fatalf("Error setting file permissions: %v\n", err)
	}
}
