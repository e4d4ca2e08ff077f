package tasks

import (
	"context"

	"github.com/lysyi3m/remix-grab/app/download"
	"github.com/lysyi3m/remix-grab/app/feed"
	"github.com/lysyi3m/remix-grab/app/resolver"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application in watch mode and by the API to trigger
// manual runs.
//
//	scheduler := NewScheduler(pipeline, pattern, interval)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewProcessFeedTask(pipeline, pattern))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) (*feed.Metadata, []feed.Entry, error)
}

type MediaResolver interface {
	Resolve(ctx context.Context, landingURL string) (string, error)
}

type MediaDownloader interface {
	Download(ctx context.Context, resolvedURL, destinationDir string) (download.Target, error)
}

var (
	_ FeedFetcher     = (*feed.Fetcher)(nil)
	_ MediaResolver   = (*resolver.Resolver)(nil)
	_ MediaDownloader = (*download.Downloader)(nil)
)
