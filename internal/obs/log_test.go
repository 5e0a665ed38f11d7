package obs

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestDebugfRespectsToggle(t *testing.T) {
	logger := Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer func() {
		logger.SetOutput(original)
		SetDebug(false)
	}()

	SetDebug(false)
	Debugf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("debug output emitted while disabled: %q", buf.String())
	}

	SetDebug(true)
	Debugf("visible %d", 2)
	if buf.Len() == 0 {
		t.Fatal("expected debug output while enabled")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("debug line not valid JSON: %v", err)
	}
	if entry["level"] != "debug" || entry["msg"] != "visible 2" {
		t.Fatalf("unexpected entry %v", entry)
	}
}
