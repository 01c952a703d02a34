package naming

import (
	"strings"
)

// OverrideTable pins display names to exact item codes.
type OverrideTable interface {
	Override(itemID string) (string, bool)
}

// Normalizer resolves a description (and optional item code) to a display name.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	names     Table
	overrides OverrideTable
}

// NewNormalizer wires the lookup tables. Either argument may be nil.
func NewNormalizer(names Table, overrides OverrideTable) *Normalizer {
	return &Normalizer{names: names, overrides: overrides}
}

// FromTables is a shortcut for tables that serve both lookups.
func FromTables(t *Tables) *Normalizer {
	return NewNormalizer(t, t)
}

// Normalize returns the curated name for raw, falling back to the description
// with its bracketed suffix removed. It never fails.
func (n *Normalizer) Normalize(raw, itemID string) string {
	if n == nil {
		return TruncateDescription(raw)
	}
	if n.overrides != nil && itemID != "" {
		if name, ok := n.overrides.Override(itemID); ok {
			return name
		}
	}
	if n.names != nil {
		if name, ok := n.names.Lookup(Canonicalize(raw)); ok {
			return name
		}
		short := TruncateDescription(raw)
		if short != raw {
			if name, ok := n.names.Lookup(Canonicalize(short)); ok {
				return name
			}
		}
	}
	return TruncateDescription(raw)
}

// Canonicalize lower-cases s, turns every character outside [a-z0-9 ] into a
// space, collapses whitespace runs and trims. Punctuation becomes a word
// boundary rather than being stripped, so "Mid-Back" canonicalizes to
// "mid back" while "Midback" stays "midback". Table keys go through the same
// function, so a table entry matches only the spelling it was written with.
func Canonicalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// TruncateDescription cuts s at the first '(' or '[' and trims trailing
// whitespace and commas.
func TruncateDescription(s string) string {
	if i := strings.IndexAny(s, "(["); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(strings.TrimSpace(s), ", \t")
}
