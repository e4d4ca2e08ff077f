package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Stderr is the log file value that disables the on-disk log.
const Stderr = "-"

// Output is the destination every component logs to. It is also handed to
// gin so request logs land in the same place.
type Output struct {
	io.Writer
	file *os.File
}

func (o *Output) Close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}

// Setup opens logFile for appending and installs a text slog handler writing
// to it as the process default. Nothing is written to stderr unless logFile
// is Stderr; fatal errors are reported there by the caller.
func Setup(logFile string, debug bool) (*Output, error) {
	if logFile == "" || logFile == Stderr {
		out := &Output{Writer: os.Stderr}
		slog.SetDefault(slog.New(NewHandler(out, debug)))
		return out, nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	out := &Output{Writer: file, file: file}
	slog.SetDefault(slog.New(NewHandler(out, debug)))

	return out, nil
}

func NewHandler(w io.Writer, debug bool) slog.Handler {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}
