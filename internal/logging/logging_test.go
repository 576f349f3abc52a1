package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
	}{
		{"info", "json", false},
		{"debug", "console", false},
		{"warn", "", false},
		{"loud", "json", true},
		{"info", "xml", true},
	}
	for _, tt := range tests {
		logger, err := New(tt.level, tt.format)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("New(%q, %q): expected error", tt.level, tt.format)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%q, %q): %v", tt.level, tt.format, err)
		}
		want, _ := zapcore.ParseLevel(tt.level)
		if !logger.Core().Enabled(want) {
			t.Fatalf("level %s should be enabled", tt.level)
		}
	}
}
