package logger

import (
	"bytes"
	"strings"
	"testing"
)

// resetLogger resets the logger to default state for test isolation
func resetLogger() {
	Init(Options{})
}

func TestInit_DefaultLevel_Info(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	Info("test info")
	if !strings.Contains(buf.String(), "test info") {
		t.Error("Info message should be logged at default level")
	}

	buf.Reset()

	Debug("test debug")
	if strings.Contains(buf.String(), "test debug") {
		t.Error("Debug message should not be logged at default level")
	}
}

func TestInit_DebugLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Debug: true, Output: buf})
	defer resetLogger()

	Debug("test debug message")
	if !strings.Contains(buf.String(), "test debug message") {
		t.Error("Debug message should be logged when Debug=true")
	}
}

func TestInit_QuietLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Quiet: true, Output: buf})
	defer resetLogger()

	Info("test info")
	if strings.Contains(buf.String(), "test info") {
		t.Error("Info message should not be logged when Quiet=true")
	}

	Error("test error")
	if !strings.Contains(buf.String(), "test error") {
		t.Error("Error message should be logged when Quiet=true")
	}
}

func TestInit_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{JSON: true, Output: buf})
	defer resetLogger()

	Info("json test")
	if !strings.Contains(buf.String(), `"msg":"json test"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestWith_CarriesAttributes(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	l := With("component", "test")
	l.Info("attributed")

	out := buf.String()
	if !strings.Contains(out, "component=test") {
		t.Errorf("expected attribute in output, got %q", out)
	}
}
