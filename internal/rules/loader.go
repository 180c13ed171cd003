// internal/rules/loader.go
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solatis/gridxlate/internal/types"
)

/*
 * Rule file loading.
 *
 * Rule files are YAML:
 *
 *   rules:
 *     - name: thermal
 *       source_type: Generator
 *       target_type: ThermalStandard
 *       version: 2
 *       depends_on: [buses]
 *       field_map:            # ordered; order is kept from the document
 *         name: name
 *         rating: capacity
 *         base_power: "=capacity / 100"
 *       defaults:
 *         rating: 0
 *       filter:
 *         and:
 *           - {field: status, op: eq, values: [active]}
 *           - not: {field: fuel, op: in, values: [WIND, SOLAR]}
 *
 * field_map is decoded from the yaml.Node so mapping order survives; a plain
 * map would lose it. A scalar "values" is shorthand for a one-element list.
 */

type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Name          string         `yaml:"name"`
	SourceType    string         `yaml:"source_type"`
	TargetType    string         `yaml:"target_type"`
	Version       int            `yaml:"version"`
	DependsOn     []string       `yaml:"depends_on"`
	FieldMap      FieldMap       `yaml:"field_map"`
	Defaults      map[string]any `yaml:"defaults"`
	IdentityField string         `yaml:"identity_field"`
	Filter        *filterNode    `yaml:"filter"`
}

type filterNode struct {
	Field  string        `yaml:"field"`
	Op     string        `yaml:"op"`
	Values valueList     `yaml:"values"`
	And    []*filterNode `yaml:"and"`
	Or     []*filterNode `yaml:"or"`
	Not    *filterNode   `yaml:"not"`
}

type valueList []any

// UnmarshalYAML accepts a sequence or a single scalar.
func (v *valueList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var list []any
		if err := node.Decode(&list); err != nil {
			return err
		}
		*v = list
		return nil
	}
	var single any
	if err := node.Decode(&single); err != nil {
		return err
	}
	*v = []any{single}
	return nil
}

// UnmarshalYAML decodes a mapping of target: source keeping document order.
func (m *FieldMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: field_map must be a mapping", node.Line)
	}
	out := make(FieldMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: field_map source for %q must be a string", v.Line, k.Value)
		}
		out = append(out, FieldMapping{Target: k.Value, Source: v.Value})
	}
	*m = out
	return nil
}

// LoadOption configures rule loading.
type LoadOption func(*loadConfig)

type loadConfig struct {
	identityField string
}

// WithDefaultIdentityField sets the identity field for rules that do not
// name one.
func WithDefaultIdentityField(name string) LoadOption {
	return func(c *loadConfig) {
		c.identityField = name
	}
}

// LoadFile reads rules from a YAML file.
func LoadFile(path string, opts ...LoadOption) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return Load(bytes.NewReader(data), opts...)
}

// Load decodes and validates rules from r. The first invalid rule aborts
// loading with a ValidationError whose Field is prefixed by its position.
func Load(r io.Reader, opts ...LoadOption) ([]*Rule, error) {
	var cfg loadConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file ruleFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	out := make([]*Rule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		at := fmt.Sprintf("rules[%d]", i)

		filter, err := entry.Filter.toFilter("filter")
		if err != nil {
			return nil, prefixValidation(at, err)
		}

		identity := entry.IdentityField
		if identity == "" {
			identity = cfg.identityField
		}

		rule, err := NewRule(Definition{
			Name:          entry.Name,
			SourceType:    entry.SourceType,
			TargetType:    entry.TargetType,
			Version:       entry.Version,
			FieldMap:      entry.FieldMap,
			Defaults:      entry.Defaults,
			IdentityField: identity,
			Filter:        filter,
			DependsOn:     entry.DependsOn,
		})
		if err != nil {
			return nil, prefixValidation(at, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

// toFilter converts a decoded node. Exactly one of leaf/and/or/not must be set.
func (s *filterNode) toFilter(at string) (Filter, error) {
	if s == nil {
		return nil, nil
	}

	isLeaf := s.Field != "" || s.Op != "" || len(s.Values) > 0
	kinds := 0
	for _, set := range []bool{isLeaf, s.And != nil, s.Or != nil, s.Not != nil} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return nil, types.NewValidationError(at, types.ErrMissingValue,
			"filter node must be exactly one of leaf {field, op, values}, and, or, not")
	}

	switch {
	case s.And != nil:
		children, err := toFilters(at+".and", s.And)
		if err != nil {
			return nil, err
		}
		return &And{Children: children}, nil
	case s.Or != nil:
		children, err := toFilters(at+".or", s.Or)
		if err != nil {
			return nil, err
		}
		return &Or{Children: children}, nil
	case s.Not != nil:
		child, err := s.Not.toFilter(at + ".not")
		if err != nil {
			return nil, err
		}
		return &Not{Child: child}, nil
	}

	leaf := &Leaf{Field: s.Field, Values: []any(s.Values)}
	if s.Op != "" {
		op, ok := ParseOperator(s.Op)
		if !ok {
			return nil, types.NewValidationError(at+".op", types.ErrInvalidOperator, "unknown operator %q", s.Op)
		}
		leaf.Op = op
	}
	return leaf, nil
}

func toFilters(at string, nodes []*filterNode) ([]Filter, error) {
	out := make([]Filter, 0, len(nodes))
	for i, s := range nodes {
		f, err := s.toFilter(fmt.Sprintf("%s[%d]", at, i))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func prefixValidation(at string, err error) error {
	var ve *types.ValidationError
	if errors.As(err, &ve) {
		field := at
		if ve.Field != "" {
			field = at + "." + ve.Field
		}
		return &types.ValidationError{Field: field, Reason: ve.Reason, Err: ve.Err}
	}
	return fmt.Errorf("%s: %w", at, err)
}
