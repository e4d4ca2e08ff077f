package feed

import (
	"errors"
	"fmt"
	"time"
)

type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
}

// Entry is one item of the source feed. Link is the landing page URL and
// doubles as the history identifier.
type Entry struct {
	GUID        string
	Title       string
	Link        string
	PublishedAt *time.Time
}

var (
	ErrFeedUnavailable = errors.New("feed unavailable")
	ErrFeedParse       = errors.New("feed parse error")
	ErrInvalidPattern  = errors.New("invalid pattern")
)

type FeedUnavailableError struct {
	URL string
	Err error
}

func (e *FeedUnavailableError) Error() string {
	return fmt.Sprintf("feed %s unavailable: %v", e.URL, e.Err)
}

func (e *FeedUnavailableError) Unwrap() error { return e.Err }

func (e *FeedUnavailableError) Is(target error) bool { return target == ErrFeedUnavailable }

type FeedParseError struct {
	URL string
	Err error
}

func (e *FeedParseError) Error() string {
	return fmt.Sprintf("failed to parse feed %s: %v", e.URL, e.Err)
}

func (e *FeedParseError) Unwrap() error { return e.Err }

func (e *FeedParseError) Is(target error) bool { return target == ErrFeedParse }

type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("bad regular expression %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }

func (e *InvalidPatternError) Is(target error) bool { return target == ErrInvalidPattern }
