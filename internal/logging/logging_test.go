package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWithOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "debug", "json")
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %s", logger.GetLevel())
	}
	logger.WithField("ride_id", "r1").Debug("ride transition")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}
	if entry["ride_id"] != "r1" || entry["msg"] != "ride transition" {
		t.Fatalf("unexpected entry: %v", entry)
	}

	if l := NewWithOutput(&buf, "loud", "text"); l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("unknown level should fall back to info, got %s", l.GetLevel())
	}
}
