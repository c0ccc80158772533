package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/siherrmann/vidrag/helper"
)

// Status is the lifecycle state of a background task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Task is one unit of background work keyed by the video it processes.
type Task struct {
	ID        uuid.UUID `json:"id"`
	VideoID   string    `json:"video_id"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Queue runs background work with per-task retry and status tracking.
// One task per video id can be in flight; re-enqueueing while pending or
// running is rejected so the same video is never indexed twice at once.
type Queue struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	retries uint64
	log     *slog.Logger
}

// NewQueue creates a queue whose tasks retry up to maxRetries times with
// exponential backoff before failing.
func NewQueue(maxRetries uint64, logger *slog.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		tasks:   map[string]*Task{},
		ctx:     ctx,
		cancel:  cancel,
		retries: maxRetries,
		log:     logger,
	}
}

// Enqueue schedules fn for the video and returns the created task. The
// task moves pending -> running -> completed/failed; transient failures are
// retried with backoff before the task fails.
func (q *Queue) Enqueue(videoID string, fn func(ctx context.Context) error) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.tasks[videoID]; ok {
		if existing.Status == StatusPending || existing.Status == StatusRunning {
			return nil, helper.NewError("enqueue task", fmt.Errorf("video %v is already being processed", videoID))
		}
	}

	task := &Task{
		ID:        uuid.New(),
		VideoID:   videoID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	q.tasks[videoID] = task

	q.wg.Add(1)
	go q.run(task, fn)

	return task, nil
}

func (q *Queue) run(task *Task, fn func(ctx context.Context) error) {
	defer q.wg.Done()

	q.setStatus(task.VideoID, StatusRunning, "")

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), q.retries), q.ctx)
	err := backoff.Retry(func() error {
		return fn(q.ctx)
	}, policy)

	if err != nil {
		q.log.Error("Background task failed", "video_id", task.VideoID, "error", err.Error())
		q.setStatus(task.VideoID, StatusFailed, err.Error())
		return
	}

	q.log.Info("Background task completed", "video_id", task.VideoID)
	q.setStatus(task.VideoID, StatusCompleted, "")
}

func (q *Queue) setStatus(videoID string, status Status, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[videoID]
	if !ok {
		return
	}
	task.Status = status
	task.Error = message
	task.UpdatedAt = time.Now()
}

// Status returns a copy of the task for the video, or nil if none exists.
func (q *Queue) Status(videoID string) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[videoID]
	if !ok {
		return nil
	}
	copied := *task
	return &copied
}

// Wait blocks until all in-flight tasks finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Close cancels in-flight tasks and waits for them to stop.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}
