package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/gridxlate/internal/types"
)

const sampleRules = `
rules:
  - name: buses
    source_type: Bus
    target_type: ACBus
    field_map:
      name: name
      number: number
  - name: thermal
    source_type: Generator
    target_type: ThermalStandard
    version: 2
    depends_on: [buses]
    field_map:
      rating: capacity
      name: name
      base_power: "=capacity / 100"
    defaults:
      rating: 0
    filter:
      and:
        - {field: status, op: eq, values: active}
        - not: {field: fuel, op: in, values: [WIND, SOLAR]}
`

func TestLoad(t *testing.T) {
	rules, err := Load(strings.NewReader(sampleRules))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	thermal := rules[1]
	assert.Equal(t, "thermal", thermal.Name())
	assert.Equal(t, 2, thermal.Version())
	assert.Equal(t, []string{"buses"}, thermal.DependsOn())
	assert.Equal(t, []string{"rating", "name", "base_power"}, thermal.FieldMap().Targets())
	assert.Equal(t, DefaultIdentityField, thermal.IdentityField())

	and, ok := thermal.Filter().(*And)
	require.True(t, ok, "filter is %T", thermal.Filter())
	require.Len(t, and.Children, 2)

	leaf := and.Children[0].(*Leaf)
	assert.Equal(t, "status", leaf.Field)
	assert.Equal(t, OpEq, leaf.Op)
	assert.Equal(t, []any{"active"}, leaf.Values)

	not := and.Children[1].(*Not)
	assert.Equal(t, []any{"WIND", "SOLAR"}, not.Child.(*Leaf).Values)

	gen := types.NewComponent("Generator", map[string]any{
		"name": "Gen1", "capacity": 500, "status": "active", "fuel": "NG",
	})
	conv := thermal.Convert(gen)
	require.True(t, conv.OK())
	assert.Equal(t, 5.0, conv.Target.Fields["base_power"])
	assert.True(t, thermal.AppliesTo(gen))
}

func TestLoad_Empty(t *testing.T) {
	rules, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, rules)
}

func TestLoad_IdentityFieldDefault(t *testing.T) {
	doc := `
rules:
  - source_type: Bus
    target_type: ACBus
    field_map: {number: number}
  - source_type: Area
    target_type: Area
    identity_field: name
    field_map: {name: name}
`
	rules, err := Load(strings.NewReader(doc), WithDefaultIdentityField("number"))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "number", rules[0].IdentityField())
	assert.Equal(t, "name", rules[1].IdentityField())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantField string
		wantErr   error
	}{
		{
			name: "missing target type",
			doc: `
rules:
  - source_type: Bus
    field_map: {name: name}
  - source_type: Gen
    field_map: {name: name}
`,
			wantField: "rules[0].target_type",
			wantErr:   types.ErrMissingValue,
		},
		{
			name: "unknown operator",
			doc: `
rules:
  - source_type: Gen
    target_type: Thermal
    field_map: {name: name}
    filter:
      or:
        - {field: a, op: eq, values: [1]}
        - {field: b, op: like, values: [x]}
`,
			wantField: "rules[0].filter.or[1].op",
			wantErr:   types.ErrInvalidOperator,
		},
		{
			name: "filter node with two kinds",
			doc: `
rules:
  - source_type: Gen
    target_type: Thermal
    field_map: {name: name}
    filter:
      field: a
      not: {field: b, op: eq, values: [1]}
`,
			wantField: "rules[0].filter",
			wantErr:   types.ErrMissingValue,
		},
		{
			name: "leaf without values",
			doc: `
rules:
  - source_type: Gen
    target_type: Thermal
    field_map: {name: name}
  - source_type: Load
    target_type: PowerLoad
    field_map: {name: name}
    filter: {field: a, op: eq}
`,
			wantField: "rules[1].filter.values",
			wantErr:   types.ErrMissingValue,
		},
		{
			name: "bad expression",
			doc: `
rules:
  - source_type: Gen
    target_type: Thermal
    field_map: {rating: "=capacity *"}
`,
			wantField: "rules[0].field_map.rating",
			wantErr:   types.ErrInvalidExpression,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			var ve *types.ValidationError
			require.True(t, errors.As(err, &ve), "error = %v", err)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	doc := `
rules:
  - source_type: Gen
    target_type: Thermal
    feld_map: {name: name}
`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feld_map")
}

func TestLoad_FieldMapMustBeMapping(t *testing.T) {
	doc := `
rules:
  - source_type: Gen
    target_type: Thermal
    field_map: [name]
`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field_map must be a mapping")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o600))

	rules, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
