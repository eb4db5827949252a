package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONDefault(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("hidden")
	log.Info("ingest done", "source", "CODUL_CIVIL", "articles", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["source"] != "CODUL_CIVIL" || rec["msg"] != "ingest done" {
		t.Errorf("record = %v", rec)
	}
}

func TestNew_TextDebug(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", Format: "text"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("skip point", "id", "x")
	if !strings.Contains(buf.String(), "skip point") {
		t.Errorf("debug line missing: %q", buf.String())
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(Config{Level: "loud"}, nil); err == nil {
		t.Error("expected level error")
	}
	if _, err := New(Config{Format: "xml"}, nil); err == nil {
		t.Error("expected format error")
	}
}
