package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docxref/internal/archive"
	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
	"github.com/dgallion1/docxref/internal/parser"
	"github.com/dgallion1/docxref/internal/xref"
)

// Worker runs the primary resolution pass for a single build.
type Worker struct {
	hints     xref.Hints
	publisher *Publisher
	stats     *BuildStats
	archive   *archive.Store
	log       *slog.Logger
}

func NewWorker(hints xref.Hints, pub *Publisher, stats *BuildStats, store *archive.Store, log *slog.Logger) *Worker {
	return &Worker{
		hints:     hints,
		publisher: pub,
		stats:     stats,
		archive:   store,
		log:       log,
	}
}

// Process scans the source for labels, parses the rendered document and
// resolves every reference link in it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("build_id", job.ID, "filename", job.Filename)
	htmlData, sourceData := job.Input()

	// Phase 1: labels and tree
	job.SetStatus(StatusParsing, "parsing")
	set := labels.NewSet()
	if job.Source != "" {
		p, err := parser.ForFile(job.Source)
		if err != nil {
			w.fail(log, job, "parsing", err)
			return
		}
		set, err = p.Parse(bytes.NewReader(sourceData), job.Source)
		if err != nil {
			w.fail(log, job, "parsing", fmt.Errorf("source: %w", err))
			return
		}
	}
	job.SetLabelCount(set.Len())

	tree, err := doctree.Parse(bytes.NewReader(htmlData))
	if err != nil {
		w.fail(log, job, "parsing", fmt.Errorf("document: %w", err))
		return
	}
	log.Info("parsed build inputs", "labels", set.Len(), "links", len(xref.ReferenceLinks(tree)))

	if ctx.Err() != nil {
		w.fail(log, job, "parsing", ctx.Err())
		return
	}

	// Phase 2: resolve
	job.SetStatus(StatusResolving, "resolving")
	b := xref.NewBuild(tree, set,
		xref.WithID(job.ID),
		xref.WithHints(w.hints),
		xref.WithLogger(w.log),
		xref.WithReporter(w.publisher),
		xref.WithTypesetAnchors(xref.MathJaxAnchors(tree)),
	)
	start := time.Now()
	summary := b.Resolve()
	w.stats.Record(time.Since(start))

	for _, r := range summary.Links {
		if r.Status == xref.StatusFailed {
			job.AddError(fmt.Sprintf("%s: %s", r.Target, r.Error))
		}
	}
	job.SetResult(b, summary)
	job.SetStatus(StatusCompleted, "done")
	if err := archiveJob(w.archive, job); err != nil {
		log.Warn("archive write failed", "error", err)
	}

	// Phase 3: status records
	written, failed := w.publisher.Flush(ctx, job.ID)
	if written+failed > 0 {
		log.Debug("published build status", "written", written, "failed", failed)
	}
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) {
	log.Error("build failed", "phase", phase, "error", err)
	job.AddError(err.Error())
	job.SetStatus(StatusFailed, phase)
}

// archiveJob writes the job's snapshot and resolved document to store.
func archiveJob(store *archive.Store, job *Job) error {
	if store == nil {
		return nil
	}
	snap := job.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	doc, _ := job.Document()
	return store.Put(archive.Record{
		BuildID:  job.ID,
		Status:   string(snap.Status),
		Snapshot: data,
		Document: doc,
	})
}
