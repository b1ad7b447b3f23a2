package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docxref/internal/archive"
	"github.com/dgallion1/docxref/internal/config"
	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/pathstore"
	"github.com/dgallion1/docxref/internal/xref"
)

var (
	ErrBuildNotFound = errors.New("build not found")
	ErrBuildNotReady = errors.New("build has not completed its primary pass")
)

// Orchestrator manages the build queue and the worker pool.
type Orchestrator struct {
	jobs      *JobStore
	queue     chan *Job
	hints     xref.Hints
	publisher *Publisher
	stats     *BuildStats
	archive   *archive.Store
	log       *slog.Logger
	cfg       config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. ps may be nil to disable status
// publishing and store may be nil to disable the build archive.
func NewOrchestrator(cfg config.Config, hints xref.Hints, ps *pathstore.Client, store *archive.Store, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:      NewJobStore(cfg.BuildTTL),
		queue:     make(chan *Job, cfg.MaxQueueSize),
		hints:     hints,
		publisher: NewPublisher(ps, log),
		stats:     NewBuildStats(time.Hour),
		archive:   store,
		log:       log,
		cfg:       cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.hints, o.publisher, o.stats, o.archive, o.log)
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

	// Start build store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new build for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("build queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a build by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// Archived returns the on-disk record of a build the job store no longer
// holds.
func (o *Orchestrator) Archived(id string) (archive.Record, error) {
	rec, err := o.archive.Get(id)
	if errors.Is(err, archive.ErrNotFound) {
		return rec, ErrBuildNotFound
	}
	return rec, err
}

// DeleteJob forgets a build, its archived record and its published status
// records.
func (o *Orchestrator) DeleteJob(ctx context.Context, id string) error {
	inMemory := o.jobs.Delete(id)
	_, archErr := o.archive.Get(id)
	archived := archErr == nil
	if !inMemory && !archived {
		return ErrBuildNotFound
	}
	if err := o.archive.Delete(id); err != nil {
		o.log.Warn("archive delete failed", "build_id", id, "error", err)
	}
	if err := o.publisher.Forget(ctx, id); err != nil {
		o.log.Warn("status cleanup failed", "build_id", id, "error", err)
	}
	return nil
}

// Reconcile handles the typesetting-complete event for a build: the
// typeset document replaces the build's tree and one reconciliation pass
// runs against the typesetter's equation anchors.
func (o *Orchestrator) Reconcile(ctx context.Context, id string, typeset []byte) (xref.Summary, error) {
	job := o.jobs.Get(id)
	if job == nil {
		return xref.Summary{}, ErrBuildNotFound
	}
	switch job.Snapshot().Status {
	case StatusCompleted, StatusReconciled:
	default:
		return xref.Summary{}, ErrBuildNotReady
	}

	tree, err := doctree.Parse(bytes.NewReader(typeset))
	if err != nil {
		return xref.Summary{}, fmt.Errorf("parse typeset document: %w", err)
	}

	var summary xref.Summary
	start := time.Now()
	ok := job.WithBuild(func(b *xref.Build) {
		b.Rebind(tree)
		summary = b.Reconcile(xref.MathJaxAnchors(tree))
	})
	if !ok {
		return xref.Summary{}, ErrBuildNotReady
	}
	o.stats.Record(time.Since(start))
	job.Reconciled(summary)
	if err := archiveJob(o.archive, job); err != nil {
		o.log.Warn("archive write failed", "build_id", id, "error", err)
	}

	o.publisher.Flush(ctx, id)
	return summary, nil
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns the rolling pass latency statistics.
func (o *Orchestrator) Stats() StatsSnapshot {
	return o.stats.Snapshot()
}

// ArchivedCount returns the number of builds kept on disk.
func (o *Orchestrator) ArchivedCount() int {
	n, err := o.archive.Count()
	if err != nil {
		o.log.Warn("archive count failed", "error", err)
	}
	return n
}

// Builds returns the number of builds currently held in memory.
func (o *Orchestrator) Builds() int {
	return o.jobs.Len()
}
