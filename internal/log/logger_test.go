package log

import (
	"log/slog"
	"testing"

	"github.com/uozer7050/coopad/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"ERROR", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, c := range cases {
		got, err := parseLevel(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("parseLevel(%q) err = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if !c.wantErr && got != c.want {
			t.Errorf("parseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestInit_RejectsBadFormat(t *testing.T) {
	err := Init(config.LogConfig{Level: "info", Format: "xml"})
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestInit_FileOutputNeedsPath(t *testing.T) {
	err := Init(config.LogConfig{
		Level:  "info",
		Format: "text",
		File:   config.LogFileConfig{Enabled: true},
	})
	if err == nil {
		t.Error("expected error for file output without path")
	}
}
