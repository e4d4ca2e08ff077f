package cfg

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrHelp              = errors.New("help requested")
	ErrDirectoryNotFound = errors.New("download directory does not exist")
)

// UsageError is returned for command-line mistakes. Usage carries the help
// text so the caller can print it next to the message.
type UsageError struct {
	Err   error
	Usage string
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error { return e.Err }

type DirectoryError struct {
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

type Cfg struct {
	// Positional arguments
	TitlePattern string
	DownloadDir  string
	Debug        bool

	// Sources and state
	FeedURL     string
	HistoryFile string
	LogFile     string
	LedgerPath  string // empty when the ledger is disabled

	// HTTP
	UserAgent       string
	Timeout         time.Duration
	DownloadTimeout time.Duration
	MediaExt        string
	Workers         int

	// Watch mode
	Interval     time.Duration
	Listen       string
	APIAccessKey string
	BaseURL      string

	Version string
}

// WatchMode reports whether the process should keep running after the first
// pass instead of exiting.
func (c *Cfg) WatchMode() bool {
	return c.Interval > 0 || c.Listen != ""
}

func (c *Cfg) LedgerEnabled() bool {
	return c.LedgerPath != ""
}
