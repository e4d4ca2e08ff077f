package database

import (
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
)

type DownloadStatus string

const (
	DownloadStatusDownloaded DownloadStatus = "downloaded"
	DownloadStatusNotFound   DownloadStatus = "not_found"
	DownloadStatusFailed     DownloadStatus = "failed"
)

type Run struct {
	ID         string // UUID
	FeedURL    string
	Pattern    string
	FeedTitle  string
	Status     RunStatus
	Error      string
	Counts     RunCounts
	StartedAt  time.Time
	FinishedAt *time.Time
}

type RunCounts struct {
	Total      int
	Downloaded int
	Failed     int
	NotFound   int
	Skipped    int // already in history
	Unmatched  int
}

// Download is one resolve+download attempt for a feed entry.
type Download struct {
	ID        int64
	RunID     string
	Link      string // landing page, the history identifier
	Title     string
	MediaURL  string
	Path      string
	Bytes     int64
	Status    DownloadStatus
	Error     string
	CreatedAt time.Time
}
