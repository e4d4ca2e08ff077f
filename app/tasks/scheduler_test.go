package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/remix-grab/app/feed"
	"github.com/lysyi3m/remix-grab/app/history"
)

type mockTask struct {
	Task
	run func(ctx context.Context) error
}

func newMockTask(run func(ctx context.Context) error) *mockTask {
	return &mockTask{Task: NewTask(TaskTypeProcessFeed, "http://example.org/feed", TriggerManual), run: run}
}

func (m *mockTask) Execute(ctx context.Context) error {
	return m.run(ctx)
}

func idleScheduler(t *testing.T) *Scheduler {
	t.Helper()

	dir := t.TempDir()
	pipeline := &Pipeline{
		FeedURL:     "http://example.org/feed",
		DownloadDir: dir,
		Workers:     1,
		Fetcher:     &mockFetcher{},
		Resolver:    &mockResolver{},
		Downloader:  &mockDownloader{},
		History:     history.NewStore(filepath.Join(dir, ".ocremix_history")),
	}
	return NewScheduler(pipeline, "all", 0)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before timeout")
}

func TestSchedulerRunsStartupTask(t *testing.T) {
	f := newFixture(t, fiveEntries())
	scheduler := NewScheduler(f.pipeline, "all", 0)

	scheduler.Start()
	defer scheduler.Stop()

	waitFor(t, 2*time.Second, func() bool { return scheduler.LastResult() != nil })

	result := scheduler.LastResult()
	if result.Err != nil {
		t.Fatalf("Expected startup run to succeed, got: %v", result.Err)
	}
	if result.Trigger != TriggerStartup {
		t.Errorf("Expected startup trigger, got %s", result.Trigger)
	}
	if result.Summary.Downloaded != 5 {
		t.Errorf("Expected 5 downloads, got %d", result.Summary.Downloaded)
	}
	if f.fetcher.calls != 1 {
		t.Errorf("Expected a single run without interval, got %d", f.fetcher.calls)
	}
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	f := newFixture(t, fiveEntries())

	var runs atomic.Int32
	countingFetcher := &countingFetcher{inner: f.fetcher, count: &runs}
	f.pipeline.Fetcher = countingFetcher

	scheduler := NewScheduler(f.pipeline, "all", 20*time.Millisecond)
	scheduler.Start()

	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 3 })
	scheduler.Stop()
}

type countingFetcher struct {
	inner FeedFetcher
	count *atomic.Int32
}

func (c *countingFetcher) Fetch(ctx context.Context, feedURL string) (*feed.Metadata, []feed.Entry, error) {
	c.count.Add(1)
	return c.inner.Fetch(ctx, feedURL)
}

func TestSchedulerNeverOverlapsRuns(t *testing.T) {
	scheduler := idleScheduler(t)
	scheduler.Start()
	defer scheduler.Stop()

	var active, maxActive, done atomic.Int32
	for i := 0; i < 5; i++ {
		task := newMockTask(func(ctx context.Context) error {
			n := active.Add(1)
			for {
				current := maxActive.Load()
				if n <= current || maxActive.CompareAndSwap(current, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
			done.Add(1)
			return nil
		})
		if err := scheduler.EnqueueTask(task); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, 2*time.Second, func() bool { return done.Load() == 5 })

	if maxActive.Load() != 1 {
		t.Errorf("Expected runs to execute one at a time, saw %d concurrently", maxActive.Load())
	}
}

func TestSchedulerQueueFull(t *testing.T) {
	scheduler := idleScheduler(t)

	// Not started: nothing drains the queue.
	var err error
	for i := 0; i <= queueSize; i++ {
		err = scheduler.EnqueueTask(newMockTask(func(ctx context.Context) error { return nil }))
	}

	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got: %v", err)
	}
}

func TestSchedulerEnqueueAfterStop(t *testing.T) {
	scheduler := idleScheduler(t)
	scheduler.Start()
	scheduler.Stop()

	if _, err := scheduler.EnqueueRun(); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled after stop, got: %v", err)
	}
}

func TestSchedulerRetriesFailedTask(t *testing.T) {
	scheduler := idleScheduler(t)
	scheduler.retryDelay = time.Millisecond
	scheduler.Start()
	defer scheduler.Stop()

	var attempts atomic.Int32
	task := newMockTask(func(ctx context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("feed temporarily unavailable")
		}
		return nil
	})

	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool { return attempts.Load() == 3 })

	waitFor(t, time.Second, func() bool {
		result := scheduler.LastResult()
		return result != nil && result.TaskID == task.ID && result.Err == nil
	})
	if task.Retries() != 2 {
		t.Errorf("Expected 2 retries, got %d", task.Retries())
	}
}

func TestSchedulerStopsAfterMaxRetries(t *testing.T) {
	scheduler := idleScheduler(t)
	scheduler.retryDelay = time.Millisecond
	scheduler.Start()
	defer scheduler.Stop()

	var attempts atomic.Int32
	task := newMockTask(func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("still down")
	})

	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool { return attempts.Load() == DefaultMaxRetries+1 })
	time.Sleep(50 * time.Millisecond)

	if attempts.Load() != DefaultMaxRetries+1 {
		t.Errorf("Expected %d attempts, got %d", DefaultMaxRetries+1, attempts.Load())
	}
}

func TestSchedulerDoesNotRetryInvalidPattern(t *testing.T) {
	scheduler := idleScheduler(t)
	scheduler.retryDelay = time.Millisecond
	scheduler.Start()
	defer scheduler.Stop()

	var attempts atomic.Int32
	task := newMockTask(func(ctx context.Context) error {
		attempts.Add(1)
		_, err := feed.CompileTitleFilter("(")
		return err
	})

	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, func() bool { return attempts.Load() == 1 })
	time.Sleep(50 * time.Millisecond)

	if attempts.Load() != 1 {
		t.Errorf("Expected a single attempt, got %d", attempts.Load())
	}
}

func TestTaskRetryAccounting(t *testing.T) {
	task := NewTask(TaskTypeProcessFeed, "http://example.org/feed", TriggerInterval)

	if task.Retries() != 0 || !task.CanRetry() {
		t.Errorf("Expected a fresh task to have no retries, got %d", task.Retries())
	}

	for i := 0; i <= DefaultMaxRetries; i++ {
		task.Start()
	}

	if task.Attempts != DefaultMaxRetries+1 {
		t.Errorf("Expected %d attempts, got %d", DefaultMaxRetries+1, task.Attempts)
	}
	if task.CanRetry() {
		t.Error("Expected no retries left")
	}
	if task.Duration() < 0 {
		t.Errorf("Expected non-negative duration, got %s", task.Duration())
	}
}

func TestSchedulerBackoff(t *testing.T) {
	scheduler := idleScheduler(t)

	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, want := range expected {
		if got := scheduler.backoff(i + 1); got != want {
			t.Errorf("backoff(%d): expected %s, got %s", i+1, want, got)
		}
	}
}
