package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/hl7gest/internal/annotate"
	"github.com/dgallion1/hl7gest/internal/delim"
	"github.com/dgallion1/hl7gest/internal/extract"
	"github.com/dgallion1/hl7gest/internal/lint"
	"github.com/dgallion1/hl7gest/internal/metrics"
	"github.com/dgallion1/hl7gest/internal/parser"
	"github.com/dgallion1/hl7gest/internal/splitter"
)

// WorkerConfig carries the settings a Worker needs.
type WorkerConfig struct {
	Segment            string // "" sniffs each file
	AutoDetect         bool
	MaxMessages        int
	MaxConcurrentParse int
}

// Worker processes a single batch job.
type Worker struct {
	log     *slog.Logger
	linter  *lint.Linter
	metrics *metrics.Metrics
	stats   *extract.ParseStats
	cfg     WorkerConfig
}

func NewWorker(cfg WorkerConfig, linter *lint.Linter, m *metrics.Metrics, stats *extract.ParseStats, log *slog.Logger) *Worker {
	if cfg.MaxConcurrentParse <= 0 {
		cfg.MaxConcurrentParse = 1
	}
	return &Worker{
		log:     log,
		linter:  linter,
		metrics: m,
		stats:   stats,
		cfg:     cfg,
	}
}

// Process runs the batch pipeline for a job: split, then parse, annotate,
// extract and lint every message with bounded concurrency.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	w.metrics.JobStarted()
	defer job.releaseInput()

	// Phase 1: Split
	job.SetStatus(StatusSplitting, "splitting")
	text := string(job.FileData())
	seg := w.cfg.Segment
	if seg == "" {
		seg = delim.Sniff(text)
	}
	msgs, err := splitter.Split(text, splitter.Config{Segment: seg, MaxMessages: w.cfg.MaxMessages})
	if err != nil {
		log.Error("split failed", "error", err)
		job.AddError(err.Error())
		w.finish(job, StatusFailed, "splitting")
		return
	}
	job.SetTotalMessages(len(msgs))
	log.Info("split batch", "messages", len(msgs))

	if len(msgs) == 0 {
		log.Warn("no messages found")
		job.AddError("no messages found")
		w.finish(job, StatusFailed, "splitting")
		return
	}

	// Phase 2: Parse and process messages with bounded concurrency.
	job.SetStatus(StatusParsing, "parsing")
	opts := []parser.Option{parser.WithSegmentDelimiter(seg), parser.WithAutoDetect(w.cfg.AutoDetect)}
	specs := job.Specs()
	sem := make(chan struct{}, w.cfg.MaxConcurrentParse)
	var wg sync.WaitGroup

	for _, m := range msgs {
		select {
		case <-ctx.Done():
			job.AddError(fmt.Sprintf("cancelled: %s", ctx.Err()))
			wg.Wait()
			w.finish(job, StatusFailed, "parsing")
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(m splitter.Message) {
			defer wg.Done()
			defer func() { <-sem }()
			r := w.processMessage(m, specs, opts)
			if r.Error != "" {
				log.Warn("message failed", "index", m.Index, "line", m.Line, "error", r.Error)
				job.AddError(fmt.Sprintf("message %d (line %d): %s", m.Index, m.Line, r.Error))
			}
			job.AddResult(r)
		}(m)
	}
	wg.Wait()

	snap := job.Snapshot()
	failed := snap.Progress.MessagesFailed
	log.Info("batch complete",
		"messages", len(msgs),
		"failed", failed,
		"lint_errors", snap.Progress.LintErrors,
	)

	switch {
	case failed == len(msgs):
		w.finish(job, StatusFailed, "parsing")
	case failed > 0:
		w.finish(job, StatusPartial, "done")
	default:
		w.finish(job, StatusCompleted, "done")
	}
}

func (w *Worker) processMessage(m splitter.Message, specs []extract.Spec, opts []parser.Option) MessageResult {
	r := MessageResult{Index: m.Index, Line: m.Line, Segments: m.Segments}

	start := time.Now()
	root, err := parser.Parse(m.Text, opts...)
	elapsed := time.Since(start)
	w.metrics.RecordParse(len(m.Text), elapsed, err)
	if err != nil {
		if w.stats != nil {
			w.stats.RecordError()
		}
		r.Error = err.Error()
		return r
	}
	if w.stats != nil {
		w.stats.Record(elapsed)
	}

	msg := annotate.Annotate(root).Message
	r.Message = &msg
	if len(specs) > 0 {
		r.Record = extract.Apply(root, specs)
	}
	if w.linter != nil {
		counts := lint.Count(w.linter.Run(root))
		r.LintErrors = counts[lint.SeverityError]
		r.LintWarnings = counts[lint.SeverityWarning]
	}
	return r
}

func (w *Worker) finish(job *Job, status JobStatus, phase string) {
	job.SetStatus(status, phase)
	w.metrics.JobFinished(string(status))
}
