// Package model defines the lens data model shared by netlist views and
// layout complements: hierarchical paths, entity identities, positions,
// and the view/complement record types themselves.
package model

import (
	"encoding/json"
	"strings"
)

// EntityPath is an ordered, dot-joined sequence of path segments
// identifying a component or group in the design hierarchy. The zero
// value (no segments) is the sentinel "no path" and is falsy.
//
// The backing representation is the dot-joined string itself, not a
// slice, so EntityPath stays comparable with == and usable as a map
// key (directly, and as part of EntityId/NotConnectedPad) without a
// custom Equal-based container.
type EntityPath struct {
	value string
}

// NewEntityPath builds an EntityPath from its segments.
func NewEntityPath(segments ...string) EntityPath {
	if len(segments) == 0 {
		return EntityPath{}
	}
	return EntityPath{value: strings.Join(segments, ".")}
}

// PathFromString parses a dot-joined path string. An empty string yields
// the empty path.
func PathFromString(path string) EntityPath {
	return EntityPath{value: path}
}

// String returns the dot-joined representation.
func (p EntityPath) String() string {
	return p.value
}

// MarshalJSON encodes the path as its dotted string form.
func (p EntityPath) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes the path from its dotted string form.
func (p *EntityPath) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = PathFromString(s)
	return nil
}

// IsEmpty reports whether this is the sentinel "no path".
func (p EntityPath) IsEmpty() bool {
	return p.value == ""
}

// segments splits the backing string on demand.
func (p EntityPath) segments() []string {
	if p.value == "" {
		return nil
	}
	return strings.Split(p.value, ".")
}

// Segments returns the path's segments.
func (p EntityPath) Segments() []string {
	return p.segments()
}

// Depth returns the number of segments.
func (p EntityPath) Depth() int {
	if p.value == "" {
		return 0
	}
	return strings.Count(p.value, ".") + 1
}

// Name returns the last segment, or "" for the empty path.
func (p EntityPath) Name() string {
	if p.value == "" {
		return ""
	}
	if i := strings.LastIndexByte(p.value, '.'); i >= 0 {
		return p.value[i+1:]
	}
	return p.value
}

// Parent returns the path with its last segment removed, and false if
// this path has fewer than two segments (no parent).
func (p EntityPath) Parent() (EntityPath, bool) {
	if p.Depth() <= 1 {
		return EntityPath{}, false
	}
	i := strings.LastIndexByte(p.value, '.')
	return EntityPath{value: p.value[:i]}, true
}

// IsAncestorOf reports whether p is a strict ancestor of other.
func (p EntityPath) IsAncestorOf(other EntityPath) bool {
	if p.value == "" {
		return other.value != ""
	}
	return len(other.value) > len(p.value) &&
		strings.HasPrefix(other.value, p.value) &&
		other.value[len(p.value)] == '.'
}

// Equal reports structural equality.
func (p EntityPath) Equal(other EntityPath) bool {
	return p.value == other.value
}

// RelativeTo returns the suffix of p beyond ancestor, and false if
// ancestor is not an ancestor of (or equal to) p.
func (p EntityPath) RelativeTo(ancestor EntityPath) (EntityPath, bool) {
	if !ancestor.IsAncestorOf(p) && !ancestor.Equal(p) {
		return EntityPath{}, false
	}
	return NewEntityPath(p.segments()[len(ancestor.segments()):]...), true
}
