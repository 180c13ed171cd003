package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		wantErr bool
	}{
		{"info", FormatJSON, false},
		{"debug", FormatText, false},
		{"warn", FormatJSON, false},
		{"error", FormatText, false},
		{"verbose", FormatJSON, true},
		{"panic", FormatJSON, true},
		{"info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("New(%q, %q) succeeded, want error", tt.level, tt.format)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q, %q) failed: %v", tt.level, tt.format, err)
			}

			lvl, _ := zapcore.ParseLevel(tt.level)
			if !logger.Core().Enabled(lvl) {
				t.Errorf("level %s not enabled", lvl)
			}
			if lvl > zapcore.DebugLevel && logger.Core().Enabled(lvl-1) {
				t.Errorf("level %s enabled below %s", lvl-1, lvl)
			}
		})
	}
}
