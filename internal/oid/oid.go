// Package oid implements the immutable object-identifier value used to
// address nodes in the MIB tree.
package oid

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a dotted string or component slice cannot
// be parsed into an ID.
var ErrMalformed = errors.New("oid: malformed object identifier")

// ID is an immutable, ordered sequence of non-negative integer components.
// The zero value is the empty OID. All transforming operations return a
// new ID; callers must never observe an ID argument mutated by a lookup.
type ID struct {
	parts []uint32
}

// Empty is the zero-length OID, the root of the tree.
var Empty = ID{}

// Parse converts a dotted-decimal string ("1.3.6.1.2.1") into an ID. A
// single leading dot is normalised away. Returns ErrMalformed if any
// component is not a non-negative integer.
func Parse(text string) (ID, error) {
	text = strings.TrimPrefix(text, ".")
	if text == "" {
		return Empty, nil
	}
	segs := strings.Split(text, ".")
	parts := make([]uint32, len(segs))
	for i, s := range segs {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return ID{}, ErrMalformed
		}
		parts[i] = uint32(n)
	}
	return ID{parts: parts}, nil
}

// MustParse is like Parse but panics on malformed input. Intended for
// constants and test fixtures, never for request-path input.
func MustParse(text string) ID {
	id, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return id
}

// FromComponents builds an ID from a sequence of component values. Each
// value must be representable as a non-negative integer.
func FromComponents(components []uint32) ID {
	parts := make([]uint32, len(components))
	copy(parts, components)
	return ID{parts: parts}
}

// Len returns the number of components.
func (id ID) Len() int { return len(id.parts) }

// At returns the component at index i. Callers must check i < id.Len().
func (id ID) At(i int) uint32 { return id.parts[i] }

// Slice returns the sub-sequence [i:j) as a new ID.
func (id ID) Slice(i, j int) ID {
	parts := make([]uint32, j-i)
	copy(parts, id.parts[i:j])
	return ID{parts: parts}
}

// Concat returns a new ID with other's components appended to id's.
func (id ID) Concat(other ID) ID {
	parts := make([]uint32, 0, len(id.parts)+len(other.parts))
	parts = append(parts, id.parts...)
	parts = append(parts, other.parts...)
	return ID{parts: parts}
}

// Append returns a new ID with a single component appended.
func (id ID) Append(n uint32) ID {
	parts := make([]uint32, 0, len(id.parts)+1)
	parts = append(parts, id.parts...)
	parts = append(parts, n)
	return ID{parts: parts}
}

// HasPrefix reports whether prefix is a prefix of id (including the
// degenerate case prefix == id).
func (id ID) HasPrefix(prefix ID) bool {
	if len(prefix.parts) > len(id.parts) {
		return false
	}
	for i, p := range prefix.parts {
		if id.parts[i] != p {
			return false
		}
	}
	return true
}

// Equal reports whether id and other have identical components.
func (id ID) Equal(other ID) bool {
	return Compare(id, other) == 0
}

// Compare orders two IDs lexicographically over their integer components;
// a strict prefix sorts before its extension. Returns -1, 0, or 1.
func Compare(a, b ID) int {
	n := len(a.parts)
	if len(b.parts) < n {
		n = len(b.parts)
	}
	for i := 0; i < n; i++ {
		if a.parts[i] < b.parts[i] {
			return -1
		}
		if a.parts[i] > b.parts[i] {
			return 1
		}
	}
	switch {
	case len(a.parts) < len(b.parts):
		return -1
	case len(a.parts) > len(b.parts):
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts strictly before b.
func Less(a, b ID) bool { return Compare(a, b) < 0 }

// String renders the OID as dot-joined components; the empty OID renders
// as "".
func (id ID) String() string {
	if len(id.parts) == 0 {
		return ""
	}
	segs := make([]string, len(id.parts))
	for i, p := range id.parts {
		segs[i] = strconv.FormatUint(uint64(p), 10)
	}
	return strings.Join(segs, ".")
}

// Components returns a defensive copy of the underlying component slice.
func (id ID) Components() []uint32 {
	out := make([]uint32, len(id.parts))
	copy(out, id.parts)
	return out
}
