package logging

import (
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelWarn},
		{"garbage", slog.LevelWarn},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_ComponentAttribute(t *testing.T) {
	var buf strings.Builder
	lg := New(Options{Level: "info", Writer: &buf, Component: "resolver"})
	lg.Info("hello")

	out := buf.String()
	if !strings.Contains(out, "component=resolver") {
		t.Errorf("log line missing component attribute: %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("log line missing message: %q", out)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf strings.Builder
	lg := New(Options{Level: "warn", Writer: &buf})
	lg.Info("quiet")
	lg.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info line leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Errorf("warn line missing: %q", out)
	}
}
