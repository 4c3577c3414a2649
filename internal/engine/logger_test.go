package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugLoggerWritesTimestampedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	l, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger: %v", err)
	}
	l.Log("[scheduler] executing: %s", "fetch")
	l.Func()("[runner] %d models", 2)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "] [scheduler] executing: fetch\n") || !strings.Contains(text, "[runner] 2 models") {
		t.Errorf("log content = %q", text)
	}
}

func TestDebugLoggerNoOp(t *testing.T) {
	var nilLogger *DebugLogger
	nilLogger.Log("ignored")
	if err := nilLogger.Close(); err != nil {
		t.Error(err)
	}

	l, err := NewDebugLogger("")
	if err != nil {
		t.Fatal(err)
	}
	l.Log("ignored")
	NopLogger().Log("ignored")
}

func TestPackageLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.log")
	l, err := NewDebugLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	SetPackageLogger(l)
	defer SetPackageLogger(nil)

	debugLog("[test] hello %s", "world")
	l.Close()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "[test] hello world") {
		t.Errorf("package log = %q", data)
	}
}

func TestWriterLoggerStopsAfterClose(t *testing.T) {
	var sb strings.Builder
	l := NewWriterLogger(&sb)
	l.Log("before %d", 1)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	l.Log("after")

	if !strings.HasSuffix(sb.String(), "] before 1\n") {
		t.Errorf("log = %q", sb.String())
	}
	if strings.Contains(sb.String(), "after") {
		t.Error("logged after Close")
	}
}
