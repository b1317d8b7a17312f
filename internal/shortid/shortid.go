package shortid

import (
	"crypto/rand"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Generator produces short, URL-safe, case-sensitive alphanumeric codes from
// a cryptographically strong source. Predictable codes would let an attacker
// enumerate live links, so the deterministic fallback is only taken when the
// source itself errors.
type Generator struct {
	src    io.Reader
	length int
	now    func() time.Time
}

// New returns a generator reading from crypto/rand.
func New(length int) *Generator {
	return NewWithSource(rand.Reader, length)
}

// NewWithSource returns a generator reading random bytes from src. Tests
// inject a deterministic reader here.
func NewWithSource(src io.Reader, length int) *Generator {
	return &Generator{src: src, length: length, now: time.Now}
}

// Generate returns one candidate code. If the random source is exhausted it
// degrades to a time-derived code rather than failing the caller.
func (g *Generator) Generate() string {
	var sb strings.Builder
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(g.src, max)
		if err != nil {
			return g.fallback()
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	return sb.String()
}

// fallback derives a code from the clock: "u" plus the last five base36
// digits of the current unix millisecond timestamp.
func (g *Generator) fallback() string {
	ts := strconv.FormatInt(g.now().UnixMilli(), 36)
	if len(ts) > 5 {
		ts = ts[len(ts)-5:]
	}
	return "u" + ts
}
