package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/remix-grab/app/database"
	"github.com/lysyi3m/remix-grab/app/history"
	"github.com/lysyi3m/remix-grab/app/tasks"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// Options describe the process the API reports on.
type Options struct {
	FeedURL string
	Pattern string
	Version string
}

// NewHandler builds the handler. runRepo and downloadRepo may be nil when the
// ledger is disabled; the endpoints that need them then answer 503.
func NewHandler(runRepo database.RunRepository, downloadRepo database.DownloadRepository,
	scheduler RunQueue, historyStore *history.Store, generator GeneratorInterface, opts Options) *Handler {
	return &Handler{
		runRepo:      runRepo,
		downloadRepo: downloadRepo,
		generator:    generator,
		scheduler:    scheduler,
		history:      historyStore,
		feedURL:      opts.FeedURL,
		pattern:      opts.Pattern,
		version:      opts.Version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"feed_url":  h.feedURL,
		"pattern":   h.pattern,
		"version":   h.version,
	}

	if seen, err := h.history.Load(); err == nil {
		health["history_entries"] = seen.Len()
	} else {
		slog.Warn("Failed to read history for health check", "error", err)
	}

	if result := h.scheduler.LastResult(); result != nil {
		last := map[string]interface{}{
			"task_id":     result.TaskID,
			"trigger":     result.Trigger,
			"finished_at": result.FinishedAt.Format(time.RFC3339),
			"summary":     summaryJSON(result.Summary),
		}
		if result.Err != nil {
			last["error"] = result.Err.Error()
		}
		health["last_run"] = last
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	if !h.ledgerEnabled(c) {
		return
	}

	stats, err := h.downloadRepo.GetDownloadStats()
	if err != nil {
		slog.Error("Database error", "operation", "get_download_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	runCount, err := h.runRepo.GetRunCount()
	if err != nil {
		slog.Error("Database error", "operation", "get_run_count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := gin.H{
		"runs": runCount,
		"downloads": gin.H{
			"downloaded": stats[database.DownloadStatusDownloaded],
			"not_found":  stats[database.DownloadStatusNotFound],
			"failed":     stats[database.DownloadStatusFailed],
		},
	}

	if last, err := h.runRepo.GetLastRun(); err == nil && last != nil {
		response["last_run"] = runJSON(*last)
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIListRuns(c *gin.Context) {
	if !h.ledgerEnabled(c) {
		return
	}

	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	runs, err := h.runRepo.GetRecentRuns(limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		items = append(items, runJSON(run))
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  items,
		"total": len(items),
	})
}

func (h *Handler) APIListDownloads(c *gin.Context) {
	if !h.ledgerEnabled(c) {
		return
	}

	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	status := database.DownloadStatus(c.DefaultQuery("status", string(database.DownloadStatusDownloaded)))
	switch status {
	case database.DownloadStatusDownloaded, database.DownloadStatusNotFound, database.DownloadStatusFailed:
	case "all":
		status = ""
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status parameter"})
		return
	}

	downloads, err := h.downloadRepo.GetRecentDownloads(status, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_downloads", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]map[string]interface{}, 0, len(downloads))
	for _, d := range downloads {
		items = append(items, downloadJSON(d))
	}

	c.JSON(http.StatusOK, gin.H{
		"downloads": items,
		"total":     len(items),
	})
}

func (h *Handler) GetDownloadsFeed(c *gin.Context) {
	if h.downloadRepo == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	downloads, err := h.downloadRepo.GetRecentDownloads(database.DownloadStatusDownloaded, 50)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_downloads", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(h.feedURL, downloads)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(downloads)))

	c.String(http.StatusOK, rss)
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	taskID, err := h.scheduler.EnqueueRun()
	if err != nil {
		if errors.Is(err, tasks.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Run queue is full",
				"details": err.Error(),
			})
			return
		}
		slog.Error("Error enqueueing run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue run",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Run enqueued",
		"task": gin.H{
			"id":   taskID,
			"type": tasks.TaskTypeProcessFeed,
		},
	})
}

func (h *Handler) ledgerEnabled(c *gin.Context) bool {
	if h.runRepo == nil || h.downloadRepo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ledger is disabled"})
		return false
	}
	return true
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return 0, false
	}

	return min(limit, maxLimit), true
}

func runJSON(run database.Run) map[string]interface{} {
	item := map[string]interface{}{
		"id":         run.ID,
		"feed_url":   run.FeedURL,
		"pattern":    run.Pattern,
		"feed_title": run.FeedTitle,
		"status":     run.Status,
		"started_at": run.StartedAt.Format(time.RFC3339),
		"counts": gin.H{
			"total":      run.Counts.Total,
			"downloaded": run.Counts.Downloaded,
			"failed":     run.Counts.Failed,
			"not_found":  run.Counts.NotFound,
			"skipped":    run.Counts.Skipped,
			"unmatched":  run.Counts.Unmatched,
		},
	}
	if run.FinishedAt != nil {
		item["finished_at"] = run.FinishedAt.Format(time.RFC3339)
	}
	if run.Error != "" {
		item["error"] = run.Error
	}
	return item
}

func downloadJSON(d database.Download) map[string]interface{} {
	item := map[string]interface{}{
		"run_id":     d.RunID,
		"link":       d.Link,
		"title":      d.Title,
		"status":     d.Status,
		"created_at": d.CreatedAt.Format(time.RFC3339),
	}
	if d.MediaURL != "" {
		item["media_url"] = d.MediaURL
	}
	if d.Path != "" {
		item["path"] = d.Path
		item["bytes"] = d.Bytes
	}
	if d.Error != "" {
		item["error"] = d.Error
	}
	return item
}

func summaryJSON(s tasks.Summary) map[string]interface{} {
	return map[string]interface{}{
		"total":      s.Total,
		"skipped":    s.Skipped,
		"unmatched":  s.Unmatched,
		"downloaded": s.Downloaded,
		"failed":     s.Failed,
		"not_found":  s.NotFound,
	}
}
