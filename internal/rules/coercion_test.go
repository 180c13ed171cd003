package rules

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/solatis/gridxlate/internal/types"
)

func TestCoerceNumeric(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    float64
		wantErr bool
	}{
		{name: "float64 passthrough", value: 42.5, want: 42.5},
		{name: "int", value: 100, want: 100},
		{name: "int64", value: int64(999), want: 999},
		{name: "uint8", value: uint8(7), want: 7},
		{name: "float32", value: float32(1.5), want: 1.5},
		{name: "numeric string", value: "25", want: 25},
		{name: "string with whitespace", value: "  42  ", want: 42},
		{name: "scientific notation", value: "1e3", want: 1000},
		{name: "json.Number", value: json.Number("12.5"), want: 12.5},
		{name: "empty string", value: "", wantErr: true},
		{name: "whitespace only", value: "   ", wantErr: true},
		{name: "non-numeric string", value: "abc", wantErr: true},
		{name: "bool", value: true, wantErr: true},
		{name: "nil", value: nil, wantErr: true},
		{name: "slice", value: []any{1}, wantErr: true},
		{name: "bad json.Number", value: json.Number("x"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceNumeric(tt.value)
			if tt.wantErr {
				if !errors.Is(err, types.ErrCoercionFailed) {
					t.Fatalf("CoerceNumeric(%v) error = %v, want ErrCoercionFailed", tt.value, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CoerceNumeric(%v) error = %v, want nil", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("CoerceNumeric(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestCoerceText(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{"138kV", "138kV"},
		{13, "13"},
		{int64(-4), "-4"},
		{2.5, "2.5"},
		{float64(100), "100"},
		{float32(0.25), "0.25"},
		{true, "true"},
		{nil, ""},
		{[]int{1, 2}, "[1 2]"},
	}

	for _, tt := range tests {
		if got := CoerceText(tt.value); got != tt.want {
			t.Errorf("CoerceText(%#v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
