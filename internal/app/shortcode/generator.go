package shortcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// Alphabet is the 62-character set codes are drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// Length is the fixed code length (62^8 ≈ 2.18e14 codes).
	Length = 8

	defaultMaxAttempts = 16
)

// ErrExhausted is returned when no free code was found within the attempt budget.
var ErrExhausted = errors.New("short code space exhausted")

// Generator produces random fixed-length base62 codes. It does not reserve
// anything; callers must insert the code under the same lock they checked it with.
type Generator struct {
	maxAttempts int
	random      io.Reader
}

// Option customises a Generator.
type Option func(*Generator)

// WithMaxAttempts bounds how many candidates are tried before giving up.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithRandom replaces the entropy source (tests use it to force collisions).
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.random = r
		}
	}
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		maxAttempts: defaultMaxAttempts,
		random:      rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a code for which taken reports false.
func (g *Generator) Generate(taken func(code string) bool) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		code, err := g.candidate()
		if err != nil {
			return "", err
		}
		if taken == nil || !taken(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, g.maxAttempts)
}

// candidate draws each character by rejection sampling six random bits, which
// keeps the distribution uniform over the 62 symbols.
func (g *Generator) candidate() (string, error) {
	buf := make([]byte, Length)
	one := make([]byte, 1)
	for i := 0; i < Length; {
		if _, err := io.ReadFull(g.random, one); err != nil {
			return "", fmt.Errorf("shortcode: read random: %w", err)
		}
		n := one[0] & 0x3f
		if int(n) >= len(Alphabet) {
			continue
		}
		buf[i] = Alphabet[n]
		i++
	}
	return string(buf), nil
}

// Valid reports whether code has the generator's shape.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
