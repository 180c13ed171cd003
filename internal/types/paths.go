package types

import (
	"strconv"
	"strings"
)

// MaxPathDepth bounds dotted field paths so resolution stays shallow.
const MaxPathDepth = 16

// PathSegment represents one component of a dotted field path.
// Numeric segments also act as slice indices; resolution decides which
// interpretation applies based on the value being traversed.
type PathSegment struct {
	Key     string // map key or attribute name
	Index   int    // slice index when IsIndex is set
	IsIndex bool   // disambiguates Index=0 from unset
}

// ParsePath splits a dotted path ("bus.ratings.0") into segments.
// Empty paths and empty segments are rejected.
func ParsePath(path string) ([]PathSegment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, NewValidationError("", ErrMissingValue, "empty field path")
	}
	parts := strings.Split(path, ".")
	if len(parts) > MaxPathDepth {
		return nil, NewValidationError("", ErrMissingValue, "field path %q exceeds maximum depth %d", path, MaxPathDepth)
	}
	segs := make([]PathSegment, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, NewValidationError("", ErrMissingValue, "field path %q has an empty segment", path)
		}
		seg := PathSegment{Key: p}
		if n, err := strconv.Atoi(p); err == nil && n >= 0 {
			seg.Index = n
			seg.IsIndex = true
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// FormatPath joins segments back into dotted form.
func FormatPath(path []PathSegment) string {
	parts := make([]string, len(path))
	for i, seg := range path {
		parts[i] = seg.Key
	}
	return strings.Join(parts, ".")
}
