package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Config{Level: "warn"})
	log.Info("dropped")
	log.Warn("kept", "session", "s1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["msg"] != "kept" || rec["session"] != "s1" {
		t.Fatalf("unexpected record: %#v", rec)
	}
}

func TestInitWritesNamedLoggerToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "defai.log")
	if err := Init(Config{Level: "debug", Format: "json", OutputPaths: []string{path}}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()

	Named("orchestrator").Debug("classified", "intent", "SEND_TOKEN")

	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(buf), `"component":"orchestrator"`) {
		t.Fatalf("expected component attribute, got %s", buf)
	}
}
