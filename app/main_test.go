package main

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Latest Remixes</title><link>http://www.example.org/</link><description>test</description></channel></rss>`

func TestRunExitCodes(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed/":
			w.Header().Set("Content-Type", "application/rss+xml")
			w.Write([]byte(emptyFeed))
		default:
			http.Error(w, "unavailable", http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	downloadDir := filepath.Join(dir, "music")
	if err := os.Mkdir(downloadDir, 0755); err != nil {
		t.Fatal(err)
	}

	common := func(feedURL string) []string {
		return []string{
			"--feed-url", feedURL,
			"--no-ledger",
			"--timeout", "5s",
			"--history-file", filepath.Join(dir, ".ocremix_history"),
			"--log-file", filepath.Join(dir, "remix-grab.log"),
		}
	}

	tests := []struct {
		name     string
		args     []string
		expected int
	}{
		{"help", []string{"--help"}, 0},
		{"missing positionals", nil, 1},
		{"unknown flag", []string{"--bogus", "Sonic", downloadDir}, 1},
		{"missing download directory", append(common(server.URL+"/feed/"), "Sonic", filepath.Join(dir, "absent")), 1},
		{"feed unavailable", append(common(server.URL+"/broken/"), "Sonic", downloadDir), 1},
		{"empty feed", append(common(server.URL+"/feed/"), "Sonic", downloadDir), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := run(tt.args); code != tt.expected {
				t.Errorf("Expected exit code %d, got %d", tt.expected, code)
			}
		})
	}

	data, err := os.ReadFile(filepath.Join(dir, "remix-grab.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `msg="Run aborted"`) {
		t.Errorf("Expected the failed run to be logged, got: %s", data)
	}
}
