package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/hl7gest/internal/config"
	"github.com/dgallion1/hl7gest/internal/extract"
	"github.com/dgallion1/hl7gest/internal/lint"
	"github.com/dgallion1/hl7gest/internal/metrics"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

// Orchestrator manages the batch processing pipeline.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	linter  *lint.Linter
	stats   *extract.ParseStats
	metrics *metrics.Metrics
	log     *slog.Logger
	cfg     config.Config

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// cleanupInterval sweeps expired jobs at half the TTL, at most every five
// minutes.
func cleanupInterval(ttl time.Duration) time.Duration {
	iv := ttl / 2
	if iv <= 0 || iv > 5*time.Minute {
		iv = 5 * time.Minute
	}
	if iv < time.Second {
		iv = time.Second
	}
	return iv
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, linter *lint.Linter, stats *extract.ParseStats, m *metrics.Metrics, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		linter:  linter,
		stats:   stats,
		metrics: m,
		log:     log,
		cfg:     cfg,
	}
}

func (o *Orchestrator) workerConfig() WorkerConfig {
	return WorkerConfig{
		Segment:            o.cfg.Segment(),
		AutoDetect:         o.cfg.AutoDetect,
		MaxMessages:        o.cfg.MaxMessagesPerJob,
		MaxConcurrentParse: o.cfg.MaxConcurrentParse,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.workerConfig(), o.linter, o.metrics, o.stats, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(cleanupInterval(o.cfg.JobTTL))
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				before := o.jobs.Len()
				o.jobs.Cleanup()
				if evicted := before - o.jobs.Len(); evicted > 0 {
					o.log.Debug("evicted expired jobs", "count", evicted)
				}
			}
		}
	}()
}

// Stop cancels running jobs and waits for the workers to exit. Calling it
// more than once is safe; Submit must not be called afterwards.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		if o.cancel != nil {
			o.cancel()
		}
		close(o.queue)
	})
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.log.Debug("job queued", "job_id", job.ID, "filename", job.Filename)
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// ParseStats returns the shared parse statistics.
func (o *Orchestrator) ParseStats() *extract.ParseStats {
	return o.stats
}
