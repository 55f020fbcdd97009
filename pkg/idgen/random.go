package idgen

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
)

// Alphabet leaves out characters that are easy to misread: 0 O o 1 l I.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz"

// DefaultLength gives 56^6 (~3e10) codes, enough that one retry covers a collision.
const DefaultLength = 6

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// RandomGenerator draws fixed-length codes from Alphabet using crypto/rand.
// It does not reserve anything; the store's unique constraint has the final word.
type RandomGenerator struct {
	length int
}

// NewRandomGenerator returns a generator for codes of the given length (DefaultLength if <= 0).
func NewRandomGenerator(length int) *RandomGenerator {
	if length <= 0 {
		length = DefaultLength
	}
	return &RandomGenerator{length: length}
}

func (g *RandomGenerator) Generate(_ context.Context) (string, error) {
	var b strings.Builder
	b.Grow(g.length)
	for i := 0; i < g.length; i++ {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// Ensure *RandomGenerator satisfies the interface at compile-time.
var _ Generator = (*RandomGenerator)(nil)
