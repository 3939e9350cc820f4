package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// PipelineFactory builds a fresh pipeline for one job together with a
// teardown that releases the run's resources (HTTP connections, the CDM
// session). One factory call per title keeps runs fully isolated.
type PipelineFactory func() (*Pipeline, func())

// Notifier pushes user-facing notifications about finished jobs.
type Notifier interface {
	NotifyJobCompleted(job *domain.Job)
	NotifyJobFailed(job *domain.Job, err error)
}

// QueueManager polls the job ledger and runs the pipeline for each pending
// job. Jobs are processed one at a time; a failed title is recorded and the
// batch carries on with the next one.
type QueueManager struct {
	repo     domain.JobRepository
	factory  PipelineFactory
	notifier Notifier
	config   *domain.QueueConfig
	logger   *zap.Logger
	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	exitChan chan struct{}
	workerWg sync.WaitGroup
}

// NewQueueManager creates a new queue manager
func NewQueueManager(
	repo domain.JobRepository,
	factory PipelineFactory,
	notifier Notifier,
	config *domain.QueueConfig,
	logger *zap.Logger,
) *QueueManager {
	return &QueueManager{
		repo:     repo,
		factory:  factory,
		notifier: notifier,
		config:   config,
		logger:   logger,
		stopChan: make(chan struct{}),
		exitChan: make(chan struct{}),
	}
}

// Start starts the queue processor
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager already running")
	}
	qm.running = true
	qm.mu.Unlock()

	qm.logger.Info("Queue manager started")
	qm.workerWg.Add(1)
	go qm.processQueue(ctx)

	return nil
}

// Stop stops the queue processor
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager not running")
	}
	qm.running = false
	qm.mu.Unlock()

	close(qm.stopChan)
	qm.workerWg.Wait()
	qm.logger.Info("Queue manager stopped")

	return nil
}

// IsRunning returns whether the queue manager is running
func (qm *QueueManager) IsRunning() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.running
}

// WaitForExit returns a channel closed when the manager exits on its own
// (auto-exit after the queue stays empty).
func (qm *QueueManager) WaitForExit() <-chan struct{} {
	return qm.exitChan
}

// AddJob validates and enqueues one download config.
func (qm *QueueManager) AddJob(cfg *domain.DownloadConfig, opts domain.Options) (*domain.Job, error) {
	job, err := domain.NewJob(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := qm.repo.Create(job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	qm.logger.Info("Job queued",
		zap.String("id", job.ID),
		zap.String("title", job.Title),
		zap.String("provider", job.Provider))

	return job, nil
}

// GetJob retrieves a job by ID
func (qm *QueueManager) GetJob(id string) (*domain.Job, error) {
	return qm.repo.FindByID(id)
}

// ListJobs lists all jobs with optional filters
func (qm *QueueManager) ListJobs(filters map[string]interface{}) ([]*domain.Job, error) {
	return qm.repo.FindAll(filters)
}

// GetStats returns queue statistics
func (qm *QueueManager) GetStats() (*domain.JobStats, error) {
	return qm.repo.GetStats()
}

// RetryJob re-queues a failed job.
func (qm *QueueManager) RetryJob(id string) error {
	job, err := qm.repo.FindByID(id)
	if err != nil {
		return fmt.Errorf("job not found: %w", err)
	}

	if job.Status != domain.StatusFailed {
		return fmt.Errorf("job is not in failed state: %s", job.Status)
	}

	job.Status = domain.StatusQueued
	job.ErrorMessage = ""
	job.FailedStage = ""
	job.UpdatedAt = time.Now()

	if err := qm.repo.Update(job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	qm.logger.Info("Job queued for retry", zap.String("id", id))
	return nil
}

// processQueue processes the job queue
func (qm *QueueManager) processQueue(ctx context.Context) {
	defer qm.workerWg.Done()

	ticker := time.NewTicker(qm.config.CheckInterval)
	defer ticker.Stop()

	emptyStartTime := time.Time{}

	for {
		select {
		case <-ctx.Done():
			qm.logger.Info("Queue processor stopped", zap.String("reason", "context_cancelled"))
			return
		case <-qm.stopChan:
			qm.logger.Info("Queue processor stopped", zap.String("reason", "stop_signal"))
			return
		case <-ticker.C:
			pending, err := qm.repo.FindPending()
			if err != nil {
				qm.logger.Error("Failed to fetch pending jobs", zap.Error(err))
				continue
			}

			if len(pending) == 0 {
				if emptyStartTime.IsZero() {
					emptyStartTime = time.Now()
				} else if qm.config.AutoExitOnEmpty && time.Since(emptyStartTime) > qm.config.EmptyWaitTime {
					qm.logger.Info("Queue empty, auto-exiting")
					close(qm.exitChan)
					return
				}
				continue
			}

			emptyStartTime = time.Time{}

			// Titles run one after another; one bad title must not take
			// the rest of the batch down with it.
			for _, job := range pending {
				select {
				case <-ctx.Done():
					return
				case <-qm.stopChan:
					return
				default:
				}
				if err := qm.ProcessJob(ctx, job); err != nil {
					qm.logger.Error("Job failed",
						zap.String("id", job.ID),
						zap.String("title", job.Title),
						zap.Error(err))
				}
			}
		}
	}
}

// ProcessJob runs the pipeline for one job and records the outcome.
func (qm *QueueManager) ProcessJob(ctx context.Context, job *domain.Job) error {
	cfg, err := job.DownloadConfig()
	if err != nil {
		job.MarkFailed(err)
		qm.repo.Update(job)
		return fmt.Errorf("invalid job config: %w", err)
	}
	opts, err := job.PipelineOptions()
	if err != nil {
		job.MarkFailed(err)
		qm.repo.Update(job)
		return fmt.Errorf("invalid job options: %w", err)
	}

	job.MarkProcessing()
	if err := qm.repo.Update(job); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	qm.logger.Info("Processing job",
		zap.String("id", job.ID),
		zap.String("title", job.Title),
		zap.String("provider", job.Provider))

	pipeline, teardown := qm.factory()
	defer teardown()

	result, err := pipeline.Run(ctx, cfg, opts)
	if err != nil {
		job.MarkFailed(err)
		if uerr := qm.repo.Update(job); uerr != nil {
			qm.logger.Error("Failed to update job status", zap.Error(uerr))
		}
		if qm.notifier != nil {
			qm.notifier.NotifyJobFailed(job, err)
		}
		return err
	}

	job.MarkCompleted(result.OutputPath)
	if err := qm.repo.Update(job); err != nil {
		qm.logger.Error("Failed to update job status", zap.Error(err))
	}

	qm.logger.Info("Job completed",
		zap.String("id", job.ID),
		zap.String("title", job.Title),
		zap.String("output", result.OutputPath))

	if qm.notifier != nil {
		qm.notifier.NotifyJobCompleted(job)
	}
	return nil
}
