package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/docket/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"error", logrus.ErrorLevel},
		{"WARN", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{" debug ", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetup_JSON(t *testing.T) {
	origOut, origFmt, origLevel := logrus.StandardLogger().Out, logrus.StandardLogger().Formatter, logrus.GetLevel()
	t.Cleanup(func() {
		logrus.SetOutput(origOut)
		logrus.SetFormatter(origFmt)
		logrus.SetLevel(origLevel)
	})

	var buf bytes.Buffer
	Setup(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logrus.Info("hidden")
	logrus.WithField("memo_id", 9).Warn("memo: shown")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected exactly one json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "memo: shown" {
		t.Errorf("msg = %v, want memo: shown", entry["msg"])
	}
	if entry["memo_id"] != float64(9) {
		t.Errorf("memo_id = %v, want 9", entry["memo_id"])
	}
}
