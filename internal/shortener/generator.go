package shortener

import (
	"crypto/sha256"
	"encoding/hex"
	"iter"
	"strconv"

	"github.com/jaevor/go-nanoid"
)

// Alphabet is the set of characters a short code is drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	DefaultCodeLength = 6
	DefaultMaxWindows = 16
	DefaultMaxSalts   = 100
)

// CodeGenerator generates short codes.
type CodeGenerator func() string

// NewRandomGenerator returns a generator of uniformly random codes over Alphabet.
// The underlying source is crypto/rand.
func NewRandomGenerator(length int) (CodeGenerator, error) {
	gen, err := nanoid.CustomASCII(Alphabet, length)
	if err != nil {
		return nil, err
	}

	return CodeGenerator(gen), nil
}

// RandomCandidates yields independent draws from gen until the consumer stops.
func RandomCandidates(gen CodeGenerator) iter.Seq[Code] {
	return func(yield func(Code) bool) {
		for {
			if !yield(Code(gen())) {
				return
			}
		}
	}
}

// HashOptions bounds the deterministic candidate sequence.
type HashOptions struct {
	Length     int
	MaxWindows int
	MaxSalts   int
}

// DefaultHashOptions returns the bounds used when none are configured.
func DefaultHashOptions() HashOptions {
	return HashOptions{
		Length:     DefaultCodeLength,
		MaxWindows: DefaultMaxWindows,
		MaxSalts:   DefaultMaxSalts,
	}
}

// HashCandidates derives an ordered, finite sequence of codes from the SHA-256 digest of rawURL.
//
// The sequence starts with windows of opts.Length characters slid one character at a time
// across the hex digest, then continues with the digest prefix of rawURL + "#" + salt for
// salts 1..opts.MaxSalts. The same input always produces the same sequence.
func HashCandidates(rawURL string, opts HashOptions) iter.Seq[Code] {
	return func(yield func(Code) bool) {
		digest := hexDigest(rawURL)

		for offset := 0; offset < opts.MaxWindows && offset+opts.Length <= len(digest); offset++ {
			if !yield(Code(digest[offset : offset+opts.Length])) {
				return
			}
		}

		if opts.Length > len(digest) {
			return
		}

		for salt := 1; salt <= opts.MaxSalts; salt++ {
			salted := hexDigest(rawURL + "#" + strconv.Itoa(salt))
			if !yield(Code(salted[:opts.Length])) {
				return
			}
		}
	}
}

func hexDigest(s string) string {
	sum := sha256.Sum256([]byte(s))

	return hex.EncodeToString(sum[:])
}
