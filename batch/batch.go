// Package batch generates summaries for a list of books one at a time.
//
// A run is serial and follows input order. Cancellation is observed
// between items only: the item in flight always finishes and is recorded.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ineyio/summarist"
	"github.com/ineyio/summarist/library"
)

// Generator produces an Outcome for one rendered request.
// *summarist.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req summarist.GenerationRequest) summarist.Outcome
}

// providerLister is implemented by generators that expose their provider list.
type providerLister interface {
	Providers() []summarist.ProviderConfig
}

var _ Generator = (*summarist.Client)(nil)

// RenderFunc turns book metadata into a request.
type RenderFunc func(library.Book) (summarist.GenerationRequest, error)

// Progress is reported after every processed item.
type Progress struct {
	Index   int // 1-based
	Total   int
	ID      string
	Title   string
	Outcome summarist.Outcome
}

// Orchestrator runs batches against a generator and a metadata source.
type Orchestrator struct {
	gen      Generator
	source   library.Source
	logger   *slog.Logger
	progress func(Progress)
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithProgress registers a callback invoked after each item.
func WithProgress(fn func(Progress)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// New creates an Orchestrator.
func New(gen Generator, source library.Source, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:    gen,
		source: source,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Run processes ids in order and returns the report. An id listed more
// than once is processed at its first position only. A metadata read
// failure stops the run and is recorded as the report's fatal error;
// outcomes gathered before it are kept. A render failure only fails its
// own item.
func (o *Orchestrator) Run(ctx context.Context, ids []string, render RenderFunc) Report {
	r := newReport(o.now())
	log := o.logger.With("run_id", r.RunID)

	if pl, ok := o.gen.(providerLister); ok && len(pl.Providers()) == 0 {
		r.fail(summarist.ErrNoProviders)
		r.FinishedAt = o.now()
		log.Error("batch aborted", "error", r.FatalError)
		return r
	}

	if unique := dedupe(ids); len(unique) < len(ids) {
		log.Warn("duplicate ids ignored", "count", len(ids)-len(unique))
		ids = unique
	}

	log.Info("batch started", "items", len(ids))

	for i, id := range ids {
		if ctx.Err() != nil {
			r.Cancelled = true
			log.Info("batch cancelled", "processed", i, "remaining", len(ids)-i)
			break
		}

		// Items already started run to completion.
		itemCtx := context.WithoutCancel(ctx)

		book, err := o.source.Metadata(itemCtx, id)
		if err != nil {
			r.fail(fmt.Errorf("%w: %s: %v", summarist.ErrMetadataUnreadable, id, err))
			log.Error("batch aborted", "id", id, "error", r.FatalError)
			break
		}

		out := o.generate(itemCtx, book, render)
		r.record(id, book.Title, out)

		if out.OK() {
			log.Info("item generated", "id", id, "title", book.Title, "provider", out.Provider)
		} else {
			log.Warn("item failed", "id", id, "title", book.Title, "reason", out.Reason)
		}

		if o.progress != nil {
			o.progress(Progress{Index: i + 1, Total: len(ids), ID: id, Title: book.Title, Outcome: out})
		}
	}

	r.FinishedAt = o.now()
	s := r.Summary()
	log.Info("batch finished", "succeeded", s.Succeeded, "failed", s.Failed, "cancelled", r.Cancelled)
	return r
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (o *Orchestrator) generate(ctx context.Context, book library.Book, render RenderFunc) summarist.Outcome {
	req, err := render(book)
	if err != nil {
		return summarist.Failure(err.Error())
	}
	return o.gen.Generate(ctx, req)
}

// Job is a batch running in the background.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
	report Report
}

// Start runs the batch on its own goroutine.
func (o *Orchestrator) Start(ctx context.Context, ids []string, render RenderFunc) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(j.done)
		defer cancel()
		j.report = o.Run(ctx, ids, render)
	}()

	return j
}

// Cancel requests cancellation. The current item still completes.
func (j *Job) Cancel() { j.cancel() }

// Done is closed when the run has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the run finishes and returns its report.
func (j *Job) Wait() Report {
	<-j.done
	return j.report
}

// Report returns the report if the run has finished.
func (j *Job) Report() (Report, bool) {
	select {
	case <-j.done:
		return j.report, true
	default:
		return Report{}, false
	}
}

// IsFatal reports whether err aborted a run.
func IsFatal(err error) bool {
	return errors.Is(err, summarist.ErrMetadataUnreadable) || errors.Is(err, summarist.ErrNoProviders)
}
