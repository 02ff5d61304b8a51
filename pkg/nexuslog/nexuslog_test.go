package nexuslog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInfoWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Writer: &buf})
	l.Info("task started", "task", "install nginx")

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", buf.String(), err)
	}
	if decoded["message"] != "task started" {
		t.Errorf("expected message field, got %v", decoded)
	}
	if decoded["task"] != "install nginx" {
		t.Errorf("expected task field, got %v", decoded)
	}
}

func TestDebugSuppressedBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Writer: &buf, Level: "warn"})
	l.Info("should not appear")
	l.Debug("should not appear either")
	if buf.Len() != 0 {
		t.Errorf("expected no output below configured level, got %q", buf.String())
	}
}

func TestWithAddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Writer: &buf}).With("deploy", "install nginx", "web1")
	l.Info("running")

	out := buf.String()
	for _, want := range []string{"deploy", "install nginx", "web1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}
