// Package tier defines the ordered program tiers that gate service types and
// content.
package tier

import (
	"errors"
	"fmt"
	"strings"
)

type Tier string

const (
	Base    Tier = "base"
	Plus    Tier = "plus"
	Premium Tier = "premium"
)

var ErrUnknown = errors.New("unknown program tier")

// ordered lists tiers from lowest to highest.
var ordered = []Tier{Base, Plus, Premium}

var displayNames = map[string]Tier{
	"base program":    Base,
	"plus program":    Plus,
	"premium program": Premium,
}

// Rank is 1 for the lowest tier and 0 for unknown values.
func Rank(t Tier) int {
	for i, o := range ordered {
		if o == t {
			return i + 1
		}
	}
	return 0
}

func (t Tier) Valid() bool { return Rank(t) > 0 }

func (t Tier) String() string { return string(t) }

// UnmarshalText accepts every form Parse does. Unrecognised text is kept as
// sent so validation can report it against its field.
func (t *Tier) UnmarshalText(text []byte) error {
	if p, err := Parse(string(text)); err == nil {
		*t = p
		return nil
	}
	*t = Tier(strings.TrimSpace(string(text)))
	return nil
}

// AtLeast reports whether candidate ranks at or above required. An unknown
// candidate never qualifies.
func AtLeast(candidate, required Tier) bool {
	return candidate.Valid() && Rank(candidate) >= Rank(required)
}

func Lowest() Tier  { return ordered[0] }
func Highest() Tier { return ordered[len(ordered)-1] }

// OrLowest treats a missing tier as the lowest one.
func OrLowest(t *Tier) Tier {
	if t == nil || !t.Valid() {
		return Lowest()
	}
	return *t
}

// Parse accepts canonical names case-insensitively as well as display names
// such as "Plus Program".
func Parse(s string) (Tier, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if t := Tier(key); t.Valid() {
		return t, nil
	}
	if t, ok := displayNames[key]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknown, s)
}

// Names returns the canonical tier names, lowest first.
func Names() string {
	parts := make([]string, len(ordered))
	for i, t := range ordered {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
