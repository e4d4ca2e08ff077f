package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/remix-grab/app/feed"
)

var ErrQueueFull = errors.New("task queue is full")

const (
	queueSize      = 16
	maxRetryDelay  = 30 * time.Second
	defaultTimeout = 6 * time.Hour
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// RunResult describes the last task the scheduler finished.
type RunResult struct {
	TaskID     string
	Trigger    Trigger
	Summary    Summary
	Err        error
	FinishedAt time.Time
}

// Scheduler runs ProcessFeedTasks on a single worker so that only one run
// ever writes the history file at a time.
type Scheduler struct {
	pipeline    *Pipeline
	pattern     string
	interval    time.Duration
	retryDelay  time.Duration
	taskTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu   sync.Mutex
	last *RunResult
}

// NewScheduler creates a scheduler for pattern. A zero interval runs the
// startup task only; further runs must be enqueued explicitly.
func NewScheduler(pipeline *Pipeline, pattern string, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		pipeline:    pipeline,
		pattern:     pattern,
		interval:    interval,
		retryDelay:  time.Second,
		taskTimeout: defaultTimeout,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.enqueueRun(TriggerStartup)

		if s.interval <= 0 {
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueRun(TriggerInterval)
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// EnqueueRun queues a manual run for the configured pattern and returns its
// task ID.
func (s *Scheduler) EnqueueRun() (string, error) {
	return s.enqueueRun(TriggerManual)
}

// LastResult returns the outcome of the most recently finished task, or nil
// before the first one completes.
func (s *Scheduler) LastResult() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil {
		return nil
	}
	result := *s.last
	return &result
}

func (s *Scheduler) enqueueRun(trigger Trigger) (string, error) {
	task := NewProcessFeedTask(s.pipeline, s.pattern)
	task.Trigger = trigger
	id, attrs := task.ID, task.LogAttrs()

	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue ProcessFeedTask", "trigger", string(trigger), "error", err)
		return "", err
	}

	slog.Debug("ProcessFeedTask enqueued", attrs...)
	return id, nil
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	meta := task.Meta()
	meta.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	s.remember(task, err)

	if err == nil {
		return
	}

	slog.Error("Task execution failed", append(meta.LogAttrs(), "error", err)...)

	if !retryable(err) {
		slog.Debug("Task error is not retryable", "id", meta.ID)
		return
	}

	if !meta.CanRetry() {
		slog.Error("Task failed after maximum retries", append(meta.LogAttrs(), "max_retries", meta.MaxRetries, "last_error", err)...)
		return
	}

	delay := s.backoff(meta.Attempts)
	slog.Warn("Task retry scheduled", append(meta.LogAttrs(), "feed", meta.FeedURL, "max_retries", meta.MaxRetries, "delay", delay.String())...)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "id", meta.ID)
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", append(meta.LogAttrs(), "error", retryErr)...)
			}
		}
	}()
}

// backoff returns 1x, 2x, 4x ... the base delay, capped at maxRetryDelay.
func (s *Scheduler) backoff(retry int) time.Duration {
	delay := s.retryDelay << uint(retry-1)
	if delay > maxRetryDelay || delay <= 0 {
		delay = maxRetryDelay
	}
	return delay
}

func (s *Scheduler) remember(task TaskInterface, err error) {
	result := &RunResult{
		TaskID:     task.Meta().ID,
		Trigger:    task.Meta().Trigger,
		Err:        err,
		FinishedAt: time.Now().UTC(),
	}
	if t, ok := task.(*ProcessFeedTask); ok {
		result.Summary = t.Summary()
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
}

// retryable reports whether running the same task again can succeed.
// A bad pattern or a stopped scheduler will not change between attempts.
func retryable(err error) bool {
	return !errors.Is(err, feed.ErrInvalidPattern) && !errors.Is(err, context.Canceled)
}
