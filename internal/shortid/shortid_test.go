package shortid

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

var alnumRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)

func TestGenerateLengthAndCharset(t *testing.T) {
	g := New(6)
	for i := 0; i < 100; i++ {
		code := g.Generate()
		if len(code) != 6 {
			t.Fatalf("len(%q)=%d, want 6", code, len(code))
		}
		if !alnumRe.MatchString(code) {
			t.Fatalf("code %q not alphanumeric", code)
		}
	}
}

func TestGenerateSpread(t *testing.T) {
	g := New(6)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		seen[g.Generate()] = true
	}
	// 62^6 keys; any repeat in 1000 draws points at a broken source.
	if len(seen) != 1000 {
		t.Errorf("got %d distinct codes out of 1000", len(seen))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestFallbackWhenSourceExhausted(t *testing.T) {
	g := NewWithSource(failingReader{}, 6)
	g.now = func() time.Time { return time.UnixMilli(1717243200123) }

	code := g.Generate()
	if !strings.HasPrefix(code, "u") {
		t.Fatalf("fallback code %q must carry the time-derived prefix", code)
	}
	if len(code) != 6 {
		t.Errorf("fallback len(%q)=%d, want 6", code, len(code))
	}
	// Same instant, same fallback: deterministic by construction.
	if again := g.Generate(); again != code {
		t.Errorf("fallback not deterministic: %q vs %q", code, again)
	}
}
