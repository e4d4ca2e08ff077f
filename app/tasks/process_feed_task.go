package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/remix-grab/app/database"
	"github.com/lysyi3m/remix-grab/app/feed"
	"github.com/lysyi3m/remix-grab/app/history"
	"github.com/lysyi3m/remix-grab/app/resolver"
)

// Pipeline holds everything a run needs. It is shared by every
// ProcessFeedTask created for the same feed.
type Pipeline struct {
	FeedURL     string
	DownloadDir string
	Workers     int

	Fetcher    FeedFetcher
	Resolver   MediaResolver
	Downloader MediaDownloader
	History    *history.Store

	// Optional ledger. Nil repositories disable it.
	RunRepo      database.RunRepository
	DownloadRepo database.DownloadRepository

	// Progress receives one human-readable line per decision when set.
	Progress io.Writer
}

type Summary struct {
	Total      int
	Skipped    int
	Unmatched  int
	Downloaded int
	Failed     int
	NotFound   int
}

func (s Summary) counts() database.RunCounts {
	return database.RunCounts{
		Total:      s.Total,
		Downloaded: s.Downloaded,
		Failed:     s.Failed,
		NotFound:   s.NotFound,
		Skipped:    s.Skipped,
		Unmatched:  s.Unmatched,
	}
}

type ProcessFeedTask struct {
	Task
	Pattern  string
	pipeline *Pipeline

	mu      sync.Mutex
	summary Summary
}

func NewProcessFeedTask(pipeline *Pipeline, pattern string) *ProcessFeedTask {
	return &ProcessFeedTask{
		Task:     NewTask(TaskTypeProcessFeed, pipeline.FeedURL, TriggerManual),
		Pattern:  pattern,
		pipeline: pipeline,
	}
}

func (t *ProcessFeedTask) Execute(ctx context.Context) error {
	_, err := t.Run(ctx)
	return err
}

// Summary returns the counters of the most recent execution.
func (t *ProcessFeedTask) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summary
}

// Run performs one pass over the feed. Fatal errors abort before the history
// file is touched; per-entry failures are counted and logged.
func (t *ProcessFeedTask) Run(ctx context.Context) (Summary, error) {
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	default:
	}

	if t.StartedAt == nil {
		t.Start()
	}

	run := newRunState(t.pipeline, t.Pattern)
	run.start()

	summary, feedTitle, err := t.run(ctx, run)

	t.mu.Lock()
	t.summary = summary
	t.mu.Unlock()

	if err != nil {
		run.finish(database.RunStatusAborted, feedTitle, summary, err)
		slog.Error("Run aborted", "run", run.id, "feed", t.pipeline.FeedURL, "error", err)
		return summary, err
	}

	run.finish(database.RunStatusCompleted, feedTitle, summary, nil)

	slog.Info("Task completed",
		"type", "ProcessedFeed",
		"run", run.id,
		"feed", t.pipeline.FeedURL,
		"trigger", string(t.Trigger),
		"duration", t.Duration(),
		"total", summary.Total,
		"skipped", summary.Skipped,
		"unmatched", summary.Unmatched,
		"downloaded", summary.Downloaded,
		"failed", summary.Failed,
		"not_found", summary.NotFound)

	return summary, nil
}

func (t *ProcessFeedTask) run(ctx context.Context, run *runState) (Summary, string, error) {
	var summary Summary

	filter, err := feed.CompileTitleFilter(t.Pattern)
	if err != nil {
		return summary, "", err
	}

	seen, err := t.pipeline.History.Load()
	if err != nil {
		return summary, "", fmt.Errorf("failed to load history: %w", err)
	}

	slog.Debug("History loaded", "path", t.pipeline.History.Path(), "entries", seen.Len())

	metadata, entries, err := t.pipeline.Fetcher.Fetch(ctx, t.pipeline.FeedURL)
	if err != nil {
		return summary, "", err
	}

	var feedTitle string
	if metadata != nil {
		feedTitle = metadata.Title
	}

	summary.Total = len(entries)
	candidates := t.selectCandidates(entries, filter, seen, &summary)

	outcomes := t.processCandidates(ctx, run, candidates)
	for _, o := range outcomes {
		switch o.status {
		case database.DownloadStatusDownloaded:
			summary.Downloaded++
			seen.Add(o.entry.Link)
		case database.DownloadStatusNotFound:
			summary.NotFound++
		default:
			summary.Failed++
		}
	}

	// A cancelled run may have skipped entries for the wrong reason, so the
	// history is left as it was.
	if err := ctx.Err(); err != nil {
		return summary, feedTitle, err
	}

	if err := t.pipeline.History.Save(seen.IDs()); err != nil {
		return summary, feedTitle, fmt.Errorf("failed to save history: %w", err)
	}

	return summary, feedTitle, nil
}

// selectCandidates applies the history and title checks in feed order.
func (t *ProcessFeedTask) selectCandidates(entries []feed.Entry, filter *feed.TitleFilter, seen *history.Set, summary *Summary) []feed.Entry {
	var candidates []feed.Entry
	claimed := make(map[string]bool)

	for _, entry := range entries {
		if seen.Contains(entry.Link) || claimed[entry.Link] {
			summary.Skipped++
			slog.Debug("Entry skipped, already in history", "entry", entry.Title, "link", entry.Link)
			t.progress("Skipping (already downloaded): %s", entry.Title)
			continue
		}

		if !filter.Matches(entry.Title) {
			summary.Unmatched++
			slog.Debug("Entry skipped, title does not match", "entry", entry.Title, "pattern", filter.String())
			t.progress("Skipping (no match for %s): %s", filter.String(), entry.Title)
			continue
		}

		claimed[entry.Link] = true
		candidates = append(candidates, entry)
	}

	return candidates
}

type outcome struct {
	entry  feed.Entry
	status database.DownloadStatus
}

// processCandidates resolves and downloads every candidate. Results are
// returned in feed order regardless of the worker count.
func (t *ProcessFeedTask) processCandidates(ctx context.Context, run *runState, candidates []feed.Entry) []outcome {
	outcomes := make([]outcome, len(candidates))

	if t.pipeline.Workers <= 1 {
		for i, entry := range candidates {
			outcomes[i] = outcome{entry: entry, status: t.processEntry(ctx, run, entry)}
		}
		return outcomes
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.pipeline.Workers)

	for i, entry := range candidates {
		g.Go(func() error {
			outcomes[i] = outcome{entry: entry, status: t.processEntry(gctx, run, entry)}
			return nil
		})
	}

	// Workers never return errors; per-entry failures are in outcomes.
	_ = g.Wait()

	return outcomes
}

func (t *ProcessFeedTask) processEntry(ctx context.Context, run *runState, entry feed.Entry) database.DownloadStatus {
	record := database.Download{
		RunID: run.id,
		Link:  entry.Link,
		Title: entry.Title,
	}

	mediaURL, err := t.pipeline.Resolver.Resolve(ctx, entry.Link)
	if err != nil {
		record.Error = err.Error()
		if errors.Is(err, resolver.ErrNotFound) {
			record.Status = database.DownloadStatusNotFound
			slog.Warn("No download link found", "entry", entry.Title, "link", entry.Link)
			t.progress("No download link found: %s", entry.Link)
		} else {
			record.Status = database.DownloadStatusFailed
			slog.Warn("Failed to resolve entry", "entry", entry.Title, "link", entry.Link, "error", err)
			t.progress("Failed to open %s: %v", entry.Link, err)
		}
		run.record(record)
		return record.Status
	}

	record.MediaURL = mediaURL
	t.progress("Downloading %s", mediaURL)

	target, err := t.pipeline.Downloader.Download(ctx, mediaURL, t.pipeline.DownloadDir)
	if err != nil {
		record.Status = database.DownloadStatusFailed
		record.Error = err.Error()
		slog.Warn("Download failed", "entry", entry.Title, "media_url", mediaURL, "error", err)
		t.progress("Download failed: %v", err)
		run.record(record)
		return record.Status
	}

	record.Status = database.DownloadStatusDownloaded
	record.Path = target.DestinationPath
	record.Bytes = target.Bytes
	run.record(record)

	slog.Info("Downloaded", "entry", entry.Title, "media_url", mediaURL, "path", target.DestinationPath, "bytes", target.Bytes)
	t.progress("Saved %s", target.DestinationPath)

	return record.Status
}

func (t *ProcessFeedTask) progress(format string, args ...any) {
	if t.pipeline.Progress == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.pipeline.Progress, format+"\n", args...)
}

// runState writes to the ledger. Ledger failures are logged and never
// affect the run itself.
type runState struct {
	id       string
	pipeline *Pipeline
	pattern  string
	started  time.Time
}

func newRunState(pipeline *Pipeline, pattern string) *runState {
	return &runState{
		id:       uuid.NewString(),
		pipeline: pipeline,
		pattern:  pattern,
		started:  time.Now().UTC(),
	}
}

func (r *runState) start() {
	if r.pipeline.RunRepo == nil {
		return
	}

	err := r.pipeline.RunRepo.StartRun(database.Run{
		ID:        r.id,
		FeedURL:   r.pipeline.FeedURL,
		Pattern:   r.pattern,
		Status:    database.RunStatusRunning,
		StartedAt: r.started,
	})
	if err != nil {
		slog.Warn("Failed to record run start", "run", r.id, "error", err)
	}
}

func (r *runState) finish(status database.RunStatus, feedTitle string, summary Summary, runErr error) {
	if r.pipeline.RunRepo == nil {
		return
	}

	var errMsg string
	if runErr != nil {
		errMsg = runErr.Error()
	}

	if err := r.pipeline.RunRepo.FinishRun(r.id, status, feedTitle, summary.counts(), errMsg, time.Now().UTC()); err != nil {
		slog.Warn("Failed to record run result", "run", r.id, "error", err)
	}
}

func (r *runState) record(download database.Download) {
	if r.pipeline.DownloadRepo == nil {
		return
	}

	download.CreatedAt = time.Now().UTC()
	if err := r.pipeline.DownloadRepo.RecordDownload(download); err != nil {
		slog.Warn("Failed to record download", "run", r.id, "link", download.Link, "error", err)
	}
}
