// Package ids allocates collision-free record identifiers of the form
// "{unix-millis}_{hex}".
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const (
	// attempts with the plain format before sub-millisecond precision is mixed in
	plainAttempts = 10
	// total attempts before falling back to a random UUID
	maxAttempts = 100
)

var (
	timestampHexRe = regexp.MustCompile(`^\d{10,}_[0-9a-f]{6,}$`)
	legacyIntRe    = regexp.MustCompile(`^\d+$`)
)

// Allocator generates ids that are unique against a caller-supplied set.
type Allocator struct {
	now     func() time.Time
	entropy io.Reader
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Allocator) { a.now = now }
}

// WithEntropy overrides the random source used for the hex suffix.
func WithEntropy(r io.Reader) Option {
	return func(a *Allocator) { a.entropy = r }
}

// New creates an Allocator backed by the wall clock and crypto/rand.
func New(opts ...Option) *Allocator {
	a := &Allocator{now: time.Now, entropy: rand.Reader}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate returns an id not present in existing. It retries on collision,
// widens the suffix with sub-millisecond precision after 10 attempts and
// falls back to a UUIDv4 after 100.
func (a *Allocator) Generate(existing map[string]struct{}) string {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		id := a.candidate(attempt)
		if _, taken := existing[id]; !taken {
			return id
		}
	}
	for {
		id := uuid.NewString()
		if _, taken := existing[id]; !taken {
			return id
		}
	}
}

func (a *Allocator) candidate(attempt int) string {
	now := a.now()
	suffix := a.randomHex(3)
	if attempt < plainAttempts {
		return fmt.Sprintf("%d_%s", now.UnixMilli(), suffix)
	}
	sub := now.Nanosecond() % int(time.Millisecond)
	return fmt.Sprintf("%d_%05x%02x%s", now.UnixMilli(), sub, attempt, suffix)
}

func (a *Allocator) randomHex(n int) string {
	buf := make([]byte, n)
	// A short read leaves zero bytes; uniqueness is still enforced by Generate.
	_, _ = io.ReadFull(a.entropy, buf)
	return hex.EncodeToString(buf)
}

// IsValid reports whether id has a recognised shape: timestamp_hex, UUIDv4,
// or a legacy bare integer.
func IsValid(id string) bool {
	return IsTimestampHex(id) || IsUUIDv4(id) || IsLegacy(id)
}

// IsTimestampHex reports whether id has the "{unix-millis}_{hex}" shape.
func IsTimestampHex(id string) bool {
	return timestampHexRe.MatchString(id)
}

// IsUUIDv4 reports whether id is a canonical random UUID.
func IsUUIDv4(id string) bool {
	u, err := uuid.Parse(id)
	if err != nil || len(id) != 36 {
		return false
	}
	return u.Version() == 4
}

// IsLegacy reports whether id is a bare integer written by older builds.
// Legacy ids are readable but never produced for new records.
func IsLegacy(id string) bool {
	return legacyIntRe.MatchString(id)
}

// IsCurrent reports whether id may be kept as-is on new or normalized records.
func IsCurrent(id string) bool {
	return IsTimestampHex(id) || IsUUIDv4(id)
}
