package enrich

import (
	"crypto/rand"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	requestIDPrefix = "ER"
	randomLength    = 5
	base36Alphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var base36Radix = big.NewInt(int64(len(base36Alphabet)))

// Generator produces tracking identifiers of the form ER-<T>-<R> where T is
// the base-36 millisecond clock in lower case and R five random upper-case
// base-36 characters. Two calls in the same millisecond collide with probability
// 36^-5; that is fine for a reference number read out over the phone but is
// not a uniqueness guarantee.
type Generator struct {
	now    func() time.Time
	random io.Reader
}

// NewGenerator returns a generator backed by the wall clock and crypto/rand.
func NewGenerator() *Generator {
	return &Generator{now: time.Now, random: rand.Reader}
}

// NewGeneratorWith allows tests to pin the clock and the random source. Nil
// arguments select the defaults.
func NewGeneratorWith(now func() time.Time, random io.Reader) *Generator {
	g := NewGenerator()
	if now != nil {
		g.now = now
	}
	if random != nil {
		g.random = random
	}
	return g
}

// NewRequestID generates one identifier. It never fails: if the random
// source errors the time component is still unique per millisecond and the
// random part degrades to a clock-derived value.
func (g *Generator) NewRequestID() string {
	now := g.now()
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	return requestIDPrefix + "-" + ts + "-" + g.randomPart(now)
}

func (g *Generator) randomPart(now time.Time) string {
	var b strings.Builder
	b.Grow(randomLength)
	for i := 0; i < randomLength; i++ {
		n, err := rand.Int(g.random, base36Radix)
		if err != nil {
			return fallbackRandom(now)
		}
		b.WriteByte(base36Alphabet[n.Int64()])
	}
	return b.String()
}

func fallbackRandom(now time.Time) string {
	s := strings.ToUpper(strconv.FormatInt(now.UnixNano()%60466176, 36))
	for len(s) < randomLength {
		s = "0" + s
	}
	return s
}

var defaultGenerator = NewGenerator()

// NewRequestID generates an identifier with the default generator.
func NewRequestID() string { return defaultGenerator.NewRequestID() }
