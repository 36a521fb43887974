// Package tags resolves optional-content selections into install tags.
//
// A tag catalog document maps a tag key to a display name and the install
// tags it enables. The entry keyed RequiredKey is the baseline content and
// is always selected. Document order is significant: resolved tag lists
// follow it.
package tags

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// RequiredKey names the always-selected baseline entry.
const RequiredKey = "__required"

var ErrMalformed = errors.New("malformed tag catalog")

type Entry struct {
	Key      string
	Name     string
	Tags     []string
	Required bool
}

// Catalog is the ordered set of optional-content entries for one title.
type Catalog struct {
	Entries []Entry
}

// Option is a user-facing toggle derived from an Entry.
type Option struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
	// Locked options cannot be toggled by the user.
	Locked bool `json:"locked"`
}

type wireEntry struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// Decode parses a tag catalog document, keeping entries in document order.
func Decode(r io.Reader) (*Catalog, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: expected object", ErrMalformed)
	}
	c := &Catalog{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected key", ErrMalformed)
		}
		var we wireEntry
		if err := dec.Decode(&we); err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrMalformed, key, err)
		}
		name := we.Name
		if name == "" {
			name = key
		}
		c.Entries = append(c.Entries, Entry{Key: key, Name: name, Tags: we.Tags, Required: key == RequiredKey})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c, nil
}

// Options returns one toggle per entry, pre-seeded with the required default.
func (c *Catalog) Options() []Option {
	if c == nil {
		return nil
	}
	out := make([]Option, 0, len(c.Entries))
	for _, e := range c.Entries {
		out = append(out, Option{Key: e.Key, Name: e.Name, Selected: e.Required, Locked: e.Required})
	}
	return out
}

// Resolve flattens the enabled entries into an install-tag list in catalog
// order. Required entries are always included; duplicates pass through.
func (c *Catalog) Resolve(selected map[string]bool) []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, e := range c.Entries {
		if e.Required || selected[e.Key] {
			out = append(out, e.Tags...)
		}
	}
	return out
}

// Empty reports whether the catalog offers nothing to choose.
func (c *Catalog) Empty() bool { return c == nil || len(c.Entries) == 0 }
