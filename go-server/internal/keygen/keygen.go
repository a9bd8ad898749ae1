// Package keygen produces the public short keys and the secret management
// keys handed to URL owners.
package keygen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math"
)

// Alphabet is the URL-safe base64 alphabet (RFC 4648 §5). 64 symbols give
// exactly 6 bits of entropy per character.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// SecretSeparator joins the short key and the random suffix of a secret key.
const SecretSeparator = "_"

const (
	DefaultShortLength  = 8
	DefaultSuffixLength = 11
	DefaultMaxAttempts  = 10
	bitsPerChar         = 6
)

var ErrKeyspaceExhausted = errors.New("failed to generate unique key after max attempts")

// ExistsFunc reports whether a candidate key is already taken in the store.
type ExistsFunc func(ctx context.Context, key string) (bool, error)

// Generator draws keys from a cryptographically secure source.
type Generator struct {
	shortLength  int
	suffixLength int
	maxAttempts  int
	random       io.Reader
	reserved     map[string]struct{}
}

type Option func(*Generator)

func WithShortLength(n int) Option {
	return func(g *Generator) { g.shortLength = n }
}

func WithSuffixLength(n int) Option {
	return func(g *Generator) { g.suffixLength = n }
}

func WithMaxAttempts(n int) Option {
	return func(g *Generator) { g.maxAttempts = n }
}

// WithReserved keeps keys that collide with other routes out of circulation.
func WithReserved(keys ...string) Option {
	return func(g *Generator) {
		if g.reserved == nil {
			g.reserved = make(map[string]struct{}, len(keys))
		}
		for _, k := range keys {
			g.reserved[k] = struct{}{}
		}
	}
}

// WithRandom replaces crypto/rand.Reader. Only tests should need this.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.random = r }
}

func New(opts ...Option) *Generator {
	g := &Generator{
		shortLength:  DefaultShortLength,
		suffixLength: DefaultSuffixLength,
		maxAttempts:  DefaultMaxAttempts,
		random:       rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) ShortLength() int  { return g.shortLength }
func (g *Generator) SuffixLength() int { return g.suffixLength }
func (g *Generator) MaxAttempts() int  { return g.maxAttempts }

// ShortKey returns a fresh public key.
func (g *Generator) ShortKey() (string, error) {
	return g.randomString(g.shortLength)
}

// SecretKey returns shortKey + "_" + an independent random suffix. The suffix
// alone carries the secret's entropy; the prefix only helps humans match the
// two keys.
func (g *Generator) SecretKey(shortKey string) (string, error) {
	suffix, err := g.randomString(g.suffixLength)
	if err != nil {
		return "", err
	}
	return shortKey + SecretSeparator + suffix, nil
}

// UniqueShortKey generates short keys until one is neither reserved nor
// reported taken by exists. Reserved hits count as collisions.
func (g *Generator) UniqueShortKey(ctx context.Context, exists ExistsFunc) (string, int, error) {
	return g.unique(ctx, func(ctx context.Context, key string) (bool, error) {
		if g.IsReserved(key) {
			return true, nil
		}
		return exists(ctx, key)
	}, g.ShortKey)
}

func (g *Generator) IsReserved(key string) bool {
	_, ok := g.reserved[key]
	return ok
}

// UniqueSecretKey generates secret keys for shortKey until exists reports one as free.
func (g *Generator) UniqueSecretKey(ctx context.Context, shortKey string, exists ExistsFunc) (string, int, error) {
	return g.unique(ctx, exists, func() (string, error) { return g.SecretKey(shortKey) })
}

// unique returns the key and the number of collisions seen before it.
func (g *Generator) unique(ctx context.Context, exists ExistsFunc, next func() (string, error)) (string, int, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", attempt, err
		}

		key, err := next()
		if err != nil {
			return "", attempt, err
		}

		taken, err := exists(ctx, key)
		if err != nil {
			return "", attempt, err
		}
		if !taken {
			return key, attempt, nil
		}
	}
	return "", g.maxAttempts, ErrKeyspaceExhausted
}

// randomString maps each random byte onto the 64-symbol alphabet. 256 is a
// multiple of 64, so masking the low six bits introduces no bias.
func (g *Generator) randomString(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = Alphabet[b&0x3f]
	}
	return string(buf), nil
}

// IsValidKey reports whether s only contains alphabet characters and has the given length.
func IsValidKey(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isAlphabet(s[i]) {
			return false
		}
	}
	return true
}

func isAlphabet(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

// CollisionProbability approximates the birthday-bound probability that any
// two of n keys of the given length collide: 1 - exp(-n(n-1) / 2N).
func CollisionProbability(n int, length int) float64 {
	if n < 2 {
		return 0
	}
	space := math.Pow(2, float64(length*bitsPerChar))
	pairs := float64(n) * float64(n-1) / 2
	return -math.Expm1(-pairs / space)
}

// LengthFor returns the smallest key length keeping the collision probability
// of n keys at or below p.
func LengthFor(n int, p float64) int {
	length := 1
	for CollisionProbability(n, length) > p {
		length++
	}
	return length
}
