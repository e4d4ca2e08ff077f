package api

import (
	"github.com/lysyi3m/remix-grab/app/database"
	"github.com/lysyi3m/remix-grab/app/feed"
	"github.com/lysyi3m/remix-grab/app/history"
	"github.com/lysyi3m/remix-grab/app/tasks"
)

type GeneratorInterface interface {
	Run(sourceFeedURL string, downloads []database.Download) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

// RunQueue is the part of the scheduler the API drives.
type RunQueue interface {
	EnqueueRun() (string, error)
	LastResult() *tasks.RunResult
}

var _ RunQueue = (*tasks.Scheduler)(nil)

type Handler struct {
	runRepo      database.RunRepository
	downloadRepo database.DownloadRepository
	generator    GeneratorInterface
	scheduler    RunQueue
	history      *history.Store
	feedURL      string
	pattern      string
	version      string
}
