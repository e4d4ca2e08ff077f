package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupAppendsToFile(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	logFile := filepath.Join(t.TempDir(), "logs", "remix-grab.log")
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(logFile, []byte("earlier line\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := Setup(logFile, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	slog.Info("Run started", "pattern", "Sonic")
	slog.Debug("Hidden at info level")

	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "earlier line\n") {
		t.Error("Expected existing log content to be preserved")
	}
	if !strings.Contains(content, `msg="Run started"`) || !strings.Contains(content, "pattern=Sonic") {
		t.Errorf("Expected info record in log, got: %s", content)
	}
	if !strings.Contains(content, "time=") {
		t.Error("Expected records to be timestamped")
	}
	if strings.Contains(content, "Hidden at info level") {
		t.Error("Debug record must not be written at info level")
	}
}

func TestSetupCreatesLogDirectory(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	logFile := filepath.Join(t.TempDir(), "nested", "dir", "app.log")

	out, err := Setup(logFile, true)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer out.Close()

	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("Expected log file to exist, got: %v", err)
	}
}

func TestSetupStderr(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	out, err := Setup(Stderr, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if out.Writer != os.Stderr {
		t.Error("Expected stderr writer")
	}
	if err := out.Close(); err != nil {
		t.Errorf("Closing stderr output should be a no-op, got: %v", err)
	}
}

func TestNewHandlerDebugLevel(t *testing.T) {
	var buf bytes.Buffer

	info := NewHandler(&buf, false)
	if info.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected debug to be disabled without debug flag")
	}

	debug := NewHandler(&buf, true)
	if !debug.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected debug to be enabled with debug flag")
	}
}

func TestSetupKeepsEntryWarningsOffStderr(t *testing.T) {
	previous, previousStderr := slog.Default(), os.Stderr
	defer func() {
		slog.SetDefault(previous)
		os.Stderr = previousStderr
	}()

	dir := t.TempDir()
	stderr, err := os.Create(filepath.Join(dir, "stderr"))
	if err != nil {
		t.Fatal(err)
	}
	defer stderr.Close()
	os.Stderr = stderr

	logFile := filepath.Join(dir, "remix-grab.log")
	out, err := Setup(logFile, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	slog.Warn("Download failed", "entry", "Sonic", "error", "HTTP error: 500")
	slog.Error("Run aborted", "error", "feed unavailable")

	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	captured, err := os.ReadFile(stderr.Name())
	if err != nil {
		t.Fatal(err)
	}
	if len(captured) != 0 {
		t.Errorf("Expected nothing on stderr, got: %s", captured)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `msg="Download failed"`) || !strings.Contains(string(data), `msg="Run aborted"`) {
		t.Errorf("Expected warnings and errors in the log file, got: %s", data)
	}
}
