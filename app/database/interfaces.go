package database

import (
	"time"
)

type RunRepository interface {
	StartRun(run Run) error
	FinishRun(id string, status RunStatus, feedTitle string, counts RunCounts, errMsg string, finishedAt time.Time) error

	GetRun(id string) (*Run, error)
	GetLastRun() (*Run, error)
	GetRecentRuns(limit int) ([]Run, error)
	GetRunCount() (int, error)
}

type DownloadRepository interface {
	RecordDownload(download Download) error

	GetRecentDownloads(status DownloadStatus, limit int) ([]Download, error)
	GetDownloadsForRun(runID string) ([]Download, error)
	GetDownloadStats() (map[DownloadStatus]int, error)
}

var (
	_ RunRepository      = (*SQLRunRepository)(nil)
	_ DownloadRepository = (*SQLDownloadRepository)(nil)
)
