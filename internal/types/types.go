// Package types provides domain models shared across gridxlate components.
//
// Records are the unit of translation: parsers hand the rule engine
// attribute-bearing records keyed by type tag, and the engine hands back
// freshly built records of the target type. Nothing here knows about file
// formats; serialization is the caller's concern.
package types

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Record is a typed, attribute-bearing object under translation.
// Field returns false when the attribute is absent or unreadable.
type Record interface {
	Type() string
	Field(name string) (any, bool)
}

// Attributer is implemented by records that can enumerate their fields.
// Transform expressions see only records that implement it.
type Attributer interface {
	Attributes() map[string]any
}

// Component is a map-backed Record.
// Fields keep the values handed in by the caller; the engine never mutates them.
type Component struct {
	TypeName string         `json:"type"`
	Fields   map[string]any `json:"fields"`
}

// NewComponent creates a Component of the given type.
// A nil fields map is replaced with an empty one.
func NewComponent(typeName string, fields map[string]any) *Component {
	if fields == nil {
		fields = make(map[string]any)
	}
	return &Component{TypeName: typeName, Fields: fields}
}

// Type implements Record.
func (c *Component) Type() string {
	return c.TypeName
}

// Field implements Record.
func (c *Component) Field(name string) (any, bool) {
	if c == nil || c.Fields == nil {
		return nil, false
	}
	v, ok := c.Fields[name]
	return v, ok
}

// Attributes implements Attributer with a shallow copy of Fields.
func (c *Component) Attributes() map[string]any {
	out := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		out[k] = v
	}
	return out
}

// FieldNames returns field names in sorted order.
func (c *Component) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// String renders the component as Type{field=value ...} with sorted fields.
func (c *Component) String() string {
	s := c.TypeName + "{"
	for i, name := range c.FieldNames() {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%v", name, c.Fields[name])
	}
	return s + "}"
}

// FromStruct converts an attribute-bearing struct (or pointer to one) into a
// Component. Field names follow `mapstructure` tags when present, otherwise
// the Go field name. Nested structs are kept as values and can be traversed
// by dotted paths only after they are themselves maps.
func FromStruct(typeName string, v any) (*Component, error) {
	fields := make(map[string]any)
	if err := mapstructure.Decode(v, &fields); err != nil {
		return nil, fmt.Errorf("failed to convert %T to %s record: %w", v, typeName, err)
	}
	return NewComponent(typeName, fields), nil
}

// Pool holds candidate records keyed by type tag, in insertion order per tag.
type Pool map[string][]Record

// Add appends records to the pool under their own type tags.
func (p Pool) Add(records ...Record) {
	for _, r := range records {
		p[r.Type()] = append(p[r.Type()], r)
	}
}

// Len returns the total number of records across all type tags.
func (p Pool) Len() int {
	n := 0
	for _, rs := range p {
		n += len(rs)
	}
	return n
}
