package enrich

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"
)

var requestIDPattern = regexp.MustCompile(`^ER-[0-9a-z]+-[0-9A-Z]{5}$`)

func TestNewRequestIDShape(t *testing.T) {
	fixed := time.UnixMilli(1760176800000)
	g := NewGeneratorWith(func() time.Time { return fixed }, nil)

	id := g.NewRequestID()
	if !requestIDPattern.MatchString(id) {
		t.Fatalf("unexpected id shape %q", id)
	}

	parts := strings.Split(id, "-")
	ms, err := strconv.ParseInt(parts[1], 36, 64)
	if err != nil {
		t.Fatalf("time component not base36: %v", err)
	}
	if ms != fixed.UnixMilli() {
		t.Fatalf("time component decodes to %d, want %d", ms, fixed.UnixMilli())
	}
}

func TestNewRequestIDTimeComponentIsLowerCase(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := NewGeneratorWith(func() time.Time { return fixed }, nil)

	id := g.NewRequestID()
	if !strings.HasPrefix(id, "ER-loyw3v28-") {
		t.Fatalf("expected lower-case time component, got %q", id)
	}
	if suffix := id[len("ER-loyw3v28-"):]; suffix != strings.ToUpper(suffix) {
		t.Fatalf("expected upper-case random component, got %q", suffix)
	}
}

func TestNewRequestIDUnique(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := NewRequestID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q after %d calls", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestNewRequestIDDeterministicSource(t *testing.T) {
	fixed := time.UnixMilli(0)
	src := bytes.Repeat([]byte{0x00}, 64)
	g := NewGeneratorWith(func() time.Time { return fixed }, bytes.NewReader(src))
	if got := g.NewRequestID(); got != "ER-0-00000" {
		t.Fatalf("unexpected id %q", got)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNewRequestIDSurvivesRandomFailure(t *testing.T) {
	g := NewGeneratorWith(nil, failingReader{})
	id := g.NewRequestID()
	if !requestIDPattern.MatchString(id) {
		t.Fatalf("unexpected id shape %q", id)
	}
}
