package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/remix-grab/app/api"
	"github.com/lysyi3m/remix-grab/app/cfg"
	"github.com/lysyi3m/remix-grab/app/database"
	"github.com/lysyi3m/remix-grab/app/download"
	"github.com/lysyi3m/remix-grab/app/feed"
	"github.com/lysyi3m/remix-grab/app/history"
	"github.com/lysyi3m/remix-grab/app/logging"
	"github.com/lysyi3m/remix-grab/app/resolver"
	"github.com/lysyi3m/remix-grab/app/tasks"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	appCfg, err := cfg.Load(args)
	if err != nil {
		return reportConfigError(err)
	}

	logOutput, err := logging.Setup(appCfg.LogFile, appCfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer logOutput.Close()

	slog.Info("Starting remix-grab",
		"version", appCfg.Version,
		"feed_url", appCfg.FeedURL,
		"pattern", appCfg.TitlePattern,
		"download_dir", appCfg.DownloadDir,
		"history_file", appCfg.HistoryFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, closeLedger := newPipeline(appCfg)
	defer closeLedger()

	if !appCfg.WatchMode() {
		return runOnce(ctx, appCfg, pipeline)
	}

	return watch(ctx, appCfg, pipeline, logOutput)
}

func reportConfigError(err error) int {
	var usageErr *cfg.UsageError
	if errors.As(err, &usageErr) {
		if errors.Is(err, cfg.ErrHelp) {
			fmt.Fprintln(os.Stdout, usageErr.Usage)
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n\n%s\n", err, usageErr.Usage)
		return 1
	}

	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

// newPipeline wires the run components. The returned func releases the ledger.
func newPipeline(appCfg *cfg.Cfg) (*tasks.Pipeline, func()) {
	// Per-request deadlines come from each component's context timeout.
	httpClient := &http.Client{}

	pipeline := &tasks.Pipeline{
		FeedURL:     appCfg.FeedURL,
		DownloadDir: appCfg.DownloadDir,
		Workers:     appCfg.Workers,
		Fetcher:     feed.NewFetcher(httpClient, feed.NewParser(), appCfg.UserAgent, appCfg.Timeout),
		Resolver:    resolver.NewResolver(httpClient, appCfg.UserAgent, appCfg.Timeout, appCfg.MediaExt),
		Downloader:  download.NewDownloader(httpClient, appCfg.UserAgent, appCfg.DownloadTimeout),
		History:     history.NewStore(appCfg.HistoryFile),
	}

	if appCfg.Debug {
		pipeline.Progress = os.Stdout
	}

	if !appCfg.LedgerEnabled() {
		return pipeline, func() {}
	}

	db, err := database.NewConnection(appCfg.LedgerPath)
	if err != nil {
		slog.Warn("Ledger unavailable, continuing without it", "path", appCfg.LedgerPath, "error", err)
		return pipeline, func() {}
	}

	pipeline.RunRepo = database.NewRunRepository(db)
	pipeline.DownloadRepo = database.NewDownloadRepository(db)

	return pipeline, func() {
		if err := db.Close(); err != nil {
			slog.Warn("Failed to close ledger", "error", err)
		}
	}
}

func runOnce(ctx context.Context, appCfg *cfg.Cfg, pipeline *tasks.Pipeline) int {
	task := tasks.NewProcessFeedTask(pipeline, appCfg.TitlePattern)

	summary, err := task.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if appCfg.Debug {
		fmt.Printf("Done: %d entries, %d downloaded, %d already downloaded, %d not matching, %d without media, %d failed\n",
			summary.Total, summary.Downloaded, summary.Skipped, summary.Unmatched, summary.NotFound, summary.Failed)
	}

	return 0
}

func watch(ctx context.Context, appCfg *cfg.Cfg, pipeline *tasks.Pipeline, logOutput *logging.Output) int {
	// The scheduler never retries a bad pattern, so reject it before starting.
	if _, err := feed.CompileTitleFilter(appCfg.TitlePattern); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	slog.Info("Starting scheduler", "interval", appCfg.Interval, "workers", appCfg.Workers)
	scheduler := tasks.NewScheduler(pipeline, appCfg.TitlePattern, appCfg.Interval)
	scheduler.Start()
	defer scheduler.Stop()

	if appCfg.Listen == "" {
		<-ctx.Done()
		slog.Info("Received shutdown signal")
		return 0
	}

	apiHandler := api.NewHandler(pipeline.RunRepo, pipeline.DownloadRepo, scheduler, pipeline.History,
		feed.NewGenerator(appCfg.BaseURL, appCfg.Version),
		api.Options{FeedURL: appCfg.FeedURL, Pattern: appCfg.TitlePattern, Version: appCfg.Version})

	httpServer := &http.Server{
		Addr:         appCfg.Listen,
		Handler:      api.NewServer(apiHandler, appCfg.APIAccessKey, logOutput),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", appCfg.Listen, "base_url", appCfg.BaseURL)
		if appCfg.APIAccessKey == "" {
			slog.Warn("API endpoints are not protected (API_ACCESS_KEY not set)")
		}

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return exitCode
}
