package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrQueueFull    = errors.New("job queue is full")
	ErrQueueStopped = errors.New("job queue is stopped")
)

// QueueConfig sizes the serve-mode job queue.
type QueueConfig struct {
	Workers      int
	MaxQueueSize int
	JobTTL       time.Duration
}

// Queue feeds uploaded files to a fixed set of workers.
type Queue struct {
	orch  *Orchestrator
	jobs  *JobStore
	queue chan *Job
	cfg   QueueConfig
	log   *slog.Logger

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewQueue(orch *Orchestrator, cfg QueueConfig, log *slog.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		orch:  orch,
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		cfg:   cfg,
		log:   log.With("component", "queue"),
	}
}

// Start launches worker goroutines.
func (q *Queue) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for range q.cfg.Workers {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			w := NewWorker(q.orch, q.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-q.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				q.jobs.Cleanup()
			}
		}
	}()
}

// Stop rejects new jobs, cancels in-flight work and waits for the workers.
// Jobs still waiting in the queue are failed with ErrQueueStopped and get a
// ledger entry like any other file.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.queue)
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()

	for job := range q.queue {
		q.log.Warn("job dropped at shutdown", "job_id", job.ID, "filename", job.Filename)
		job.Finish(q.orch.skipFile(job.Path, ErrQueueStopped))
	}
}

// Submit queues a job for processing, failing fast when the queue is full.
func (q *Queue) Submit(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrQueueStopped
	}
	q.jobs.Put(job)
	select {
	case q.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, q.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (q *Queue) GetJob(id string) *Job {
	return q.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (q *Queue) QueueDepth() int {
	return len(q.queue)
}
