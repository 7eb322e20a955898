package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("downloaded book", "title", "A Book", "bytes", 1234)
	line := buf.String()
	if !strings.Contains(line, "downloaded book") {
		t.Fatalf("message missing from %q", line)
	}
	if !strings.Contains(line, "title=\"A Book\"") {
		t.Fatalf("attr missing from %q", line)
	}
	if !strings.Contains(line, "bytes=1234") {
		t.Fatalf("attr missing from %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("color codes written to non-terminal output: %q", line)
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("synced", "books", 3)
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "synced" {
		t.Fatalf("msg = %v", record["msg"])
	}
}

func TestNewLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %q", buf.String())
	}
	logger.Warn("loud")
	if buf.Len() == 0 {
		t.Fatal("warn line suppressed")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("unknown format accepted")
	}
}

func TestConsoleHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.WithGroup("sync").With("page", 2).Info("continuing")
	if !strings.Contains(buf.String(), "sync.page=2") {
		t.Fatalf("grouped attr missing: %q", buf.String())
	}
}
