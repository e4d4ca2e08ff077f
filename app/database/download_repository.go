package database

import (
	"fmt"
	"time"
)

// SQLDownloadRepository handles database operations for download attempts
type SQLDownloadRepository struct {
	db *DB
}

func NewDownloadRepository(db *DB) *SQLDownloadRepository {
	return &SQLDownloadRepository{db: db}
}

func (r *SQLDownloadRepository) RecordDownload(download Download) error {
	createdAt := download.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO downloads (run_id, link, title, media_url, path, bytes, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, download.RunID, download.Link, download.Title, download.MediaURL, download.Path,
		download.Bytes, string(download.Status), download.Error, formatTime(createdAt))

	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}

	return nil
}

const downloadColumns = `id, run_id, link, title, media_url, path, bytes, status, error, created_at`

// GetRecentDownloads returns the newest attempts first. An empty status
// selects every status.
func (r *SQLDownloadRepository) GetRecentDownloads(status DownloadStatus, limit int) ([]Download, error) {
	return r.queryDownloads(`
		SELECT `+downloadColumns+`
		FROM downloads
		WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, string(status), string(status), limit)
}

func (r *SQLDownloadRepository) GetDownloadsForRun(runID string) ([]Download, error) {
	return r.queryDownloads(`
		SELECT `+downloadColumns+`
		FROM downloads
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
}

func (r *SQLDownloadRepository) GetDownloadStats() (map[DownloadStatus]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM downloads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get download stats: %w", err)
	}
	defer rows.Close()

	stats := map[DownloadStatus]int{
		DownloadStatusDownloaded: 0,
		DownloadStatusNotFound:   0,
		DownloadStatusFailed:     0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats[DownloadStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats rows: %w", err)
	}

	return stats, nil
}

func (r *SQLDownloadRepository) queryDownloads(query string, args ...any) ([]Download, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get downloads: %w", err)
	}
	defer rows.Close()

	var downloads []Download
	for rows.Next() {
		var (
			download  Download
			status    string
			createdAt string
		)
		err := rows.Scan(
			&download.ID, &download.RunID, &download.Link, &download.Title,
			&download.MediaURL, &download.Path, &download.Bytes,
			&status, &download.Error, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download row: %w", err)
		}

		download.Status = DownloadStatus(status)
		if download.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan download row: %w", err)
		}

		downloads = append(downloads, download)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating download rows: %w", err)
	}

	return downloads, nil
}
