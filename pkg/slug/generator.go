package slug

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// DefaultMaxAttempts bounds the number of candidates Unique will try.
const DefaultMaxAttempts = 100

var (
	// ErrEmpty is returned when a name normalizes to an empty slug.
	ErrEmpty = errors.New("slug: name produces an empty slug")

	// ErrExhausted is returned when no free slug was found within the attempt limit.
	ErrExhausted = errors.New("slug: attempts exhausted")
)

// LookupFunc reports whether a slug is already taken for a record type.
type LookupFunc func(ctx context.Context, slug string) (bool, error)

// GenerationError describes a failed search for a free slug.
type GenerationError struct {
	RecordType string
	Base       string
	Attempts   int
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("slug: no unique %s slug for %q after %d attempts", e.RecordType, e.Base, e.Attempts)
}

func (e *GenerationError) Unwrap() error {
	return ErrExhausted
}

// Generator produces slugs that are unique according to a LookupFunc.
// The zero value uses DefaultMaxLength and DefaultMaxAttempts.
type Generator struct {
	MaxLength   int
	MaxAttempts int
}

// NewGenerator returns a Generator with the given limits.
func NewGenerator(maxLength, maxAttempts int) *Generator {
	return &Generator{MaxLength: maxLength, MaxAttempts: maxAttempts}
}

func (g *Generator) maxLength() int {
	if g == nil || g.MaxLength <= 0 {
		return DefaultMaxLength
	}
	return g.MaxLength
}

func (g *Generator) maxAttempts() int {
	if g == nil || g.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return g.MaxAttempts
}

// Unique normalizes name and, while the candidate is taken, appends "-1",
// "-2", ... to the base until exists reports a free slug. Every candidate,
// suffixed or not, fits within MaxLength. Lookup errors are returned as is.
func (g *Generator) Unique(ctx context.Context, name, recordType string, exists LookupFunc) (string, error) {
	maxLen := g.maxLength()
	maxAttempts := g.maxAttempts()

	base := Normalize(name, maxLen)
	if base == "" {
		return "", ErrEmpty
	}

	candidate := base
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check %s slug %q: %w", recordType, candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = WithSuffix(base, attempt, maxLen)
	}

	return "", &GenerationError{RecordType: recordType, Base: base, Attempts: maxAttempts}
}

// WithSuffix returns "<base>-<n>" with base shortened as needed so the
// result is at most maxLen bytes.
func WithSuffix(base string, n, maxLen int) string {
	suffix := "-" + strconv.Itoa(n)
	if maxLen > 0 && len(base)+len(suffix) > maxLen {
		room := maxLen - len(suffix)
		if room <= 0 {
			return truncate(strconv.Itoa(n), maxLen)
		}
		base = truncate(base, room)
	}
	return Normalize(base+suffix, maxLen)
}
