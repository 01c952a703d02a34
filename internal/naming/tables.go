// Package naming turns free-text catalog descriptions into stable display names.
//
// The lookup tables are immutable once built: load them at process start with
// LoadTables or DefaultTables and hand them to NewNormalizer.
package naming

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed mappings.yaml
var defaultMappings []byte

// Table resolves a canonicalized description to a display name.
type Table interface {
	Lookup(canonical string) (name string, ok bool)
}

// Tables holds the description map and the item-code overrides.
type Tables struct {
	names     map[string]*string
	overrides map[string]string
}

// mappingsFile mirrors the YAML document layout.
type mappingsFile struct {
	Names     map[string]*string `yaml:"names"`
	Overrides map[string]string  `yaml:"overrides"`
}

// NewTables builds immutable tables from raw maps. Description keys are
// canonicalized, and every display value is registered as a key for itself
// unless an explicit entry already claims that form.
func NewTables(names map[string]*string, overrides map[string]string) *Tables {
	t := &Tables{
		names:     make(map[string]*string, len(names)*2),
		overrides: make(map[string]string, len(overrides)),
	}
	for key, value := range names {
		c := Canonicalize(key)
		if c == "" {
			continue
		}
		if value == nil {
			t.names[c] = nil
			continue
		}
		v := *value
		t.names[c] = &v
	}
	for _, value := range t.names {
		if value == nil {
			continue
		}
		c := Canonicalize(*value)
		if _, exists := t.names[c]; !exists && c != "" {
			v := *value
			t.names[c] = &v
		}
	}
	for id, name := range overrides {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		t.overrides[id] = name
	}
	return t
}

// ParseTables decodes a YAML mapping document.
func ParseTables(data []byte) (*Tables, error) {
	var f mappingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse mappings: %w", err)
	}
	return NewTables(f.Names, f.Overrides), nil
}

// LoadTables reads a YAML mapping document from disk.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings %s: %w", path, err)
	}
	return ParseTables(data)
}

// DefaultTables returns the curated tables compiled into the binary.
func DefaultTables() *Tables {
	t, err := ParseTables(defaultMappings)
	if err != nil {
		panic(fmt.Sprintf("embedded mappings are invalid: %v", err))
	}
	return t
}

// Lookup returns the display name for a canonical key. Entries recorded as
// deliberate non-matches report ok=false.
func (t *Tables) Lookup(canonical string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, found := t.names[canonical]
	if !found || v == nil {
		return "", false
	}
	return *v, true
}

// Override returns the exact display name for an item code, if one is pinned.
func (t *Tables) Override(itemID string) (string, bool) {
	if t == nil || itemID == "" {
		return "", false
	}
	name, ok := t.overrides[strings.TrimSpace(itemID)]
	return name, ok
}

// Len reports the number of description keys, including self-registered names.
func (t *Tables) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}
