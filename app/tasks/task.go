package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeProcessFeed TaskType = "process_feed"
)

// Trigger records why a task was queued.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerInterval Trigger = "interval"
	TriggerManual   Trigger = "manual"
)

const (
	DefaultMaxRetries = 3
)

// TaskInterface is what the scheduler queues. Bookkeeping lives on the
// embedded *Task returned by Meta.
type TaskInterface interface {
	Execute(ctx context.Context) error
	Meta() *Task
}

// Task holds the scheduling state shared by every task type. It is only
// touched by the scheduler worker between executions.
type Task struct {
	ID         string
	Type       TaskType
	FeedURL    string
	Trigger    Trigger
	Attempts   int
	MaxRetries int
	QueuedAt   time.Time
	StartedAt  *time.Time
}

func NewTask(taskType TaskType, feedURL string, trigger Trigger) Task {
	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		FeedURL:    feedURL,
		Trigger:    trigger,
		MaxRetries: DefaultMaxRetries,
		QueuedAt:   time.Now(),
	}
}

func (t *Task) Meta() *Task {
	return t
}

// Start marks the beginning of an attempt.
func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
	t.Attempts++
}

// Retries is the number of attempts after the first.
func (t *Task) Retries() int {
	return max(t.Attempts-1, 0)
}

func (t *Task) CanRetry() bool {
	return t.Retries() < t.MaxRetries
}

// Duration is the time spent in the current attempt so far.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

// LogAttrs returns the key/value pairs every scheduler log line carries.
func (t *Task) LogAttrs() []any {
	return []any{
		"id", t.ID,
		"type", string(t.Type),
		"trigger", string(t.Trigger),
		"attempt", t.Attempts,
	}
}
