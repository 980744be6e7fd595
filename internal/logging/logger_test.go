package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("expected nop logger when no level is configured")
	}
}

func TestInitialize_FromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")

	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv() error = %v", err)
	}
	log := GetLogger()
	if !log.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn level should be enabled")
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info level should be disabled")
	}
}

func TestHexDump_Truncates(t *testing.T) {
	data := make([]byte, maxDumpBytes+10)
	got := hexDump(data)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncated dump to end with ..., got %q", got[len(got)-8:])
	}
	if len(got) != maxDumpBytes*2+3 {
		t.Errorf("hexDump length = %d, want %d", len(got), maxDumpBytes*2+3)
	}
}

func TestAsciiDump(t *testing.T) {
	got := asciiDump([]byte("$m0,4#fd\x03"))
	if got != "$m0,4#fd." {
		t.Errorf("asciiDump() = %q, want %q", got, "$m0,4#fd.")
	}
}
