package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/lightning-data-service/internal/domain"
	"github.com/couchcryptid/lightning-data-service/internal/observability"
)

// Fetcher retrieves the raw upstream feed for a query.
type Fetcher interface {
	Fetch(ctx context.Context, q domain.Query) (domain.RawFeed, error)
}

// Sink writes a batch of observations to a destination.
type Sink interface {
	Name() string
	LoadBatch(ctx context.Context, records []domain.Observation) error
}

// Options holds the query defaults applied when a Request leaves them empty.
type Options struct {
	APIKey string
	BBox   string
	CRS    string
}

// Request describes one invocation. Start and End use domain.TimeLayout;
// when both are empty the default window ending now is used.
type Request struct {
	Start   string
	End     string
	BBox    string
	CRS     string
	Format  domain.Format
	Limit   int
	Persist bool
}

// Result carries everything an invocation produced.
type Result struct {
	Window       domain.TimeWindow
	Observations []domain.Observation
	Output       domain.Rendered
}

// Pipeline runs normalize, query, fetch, reassemble, render and sink stages
// for one request at a time. It holds no per-request state and is safe for
// concurrent use.
type Pipeline struct {
	fetcher Fetcher
	sinks   []Sink
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Pipeline. Sinks run in the given order when a request asks
// for persistence.
func New(f Fetcher, sinks []Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher: f,
		sinks:   sinks,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes one invocation. The first failing stage aborts it and its
// error is returned unchanged; there are no retries.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	res, err := p.run(ctx, req)
	p.metrics.PipelineRuns.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		p.logger.Warn("pipeline run failed", "error", err, "start", req.Start, "end", req.End)
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, req Request) (Result, error) {
	window, err := p.window(req)
	if err != nil {
		return Result{}, err
	}

	q, err := domain.NewQuery(window, firstNonEmpty(req.BBox, p.opts.BBox), firstNonEmpty(req.CRS, p.opts.CRS), p.opts.APIKey)
	if err != nil {
		return Result{Window: window}, err
	}

	feed, err := p.fetcher.Fetch(ctx, q)
	if err != nil {
		return Result{Window: window}, err
	}

	records, out, err := p.transform(feed, req.Format, req.Limit)
	if err != nil {
		return Result{Window: window}, err
	}
	res := Result{Window: window, Observations: records, Output: out}

	if req.Persist {
		if err := p.load(ctx, out.Records); err != nil {
			return res, err
		}
	}

	p.logger.Info("pipeline run complete",
		"start", window.StartString(),
		"end", window.EndString(),
		"observations", len(records),
		"rendered", out.Len(),
		"format", string(out.Format),
	)
	return res, nil
}

func (p *Pipeline) window(req Request) (domain.TimeWindow, error) {
	if req.Start == "" && req.End == "" {
		return domain.DefaultWindow(domain.Now()), nil
	}
	w, err := domain.NormalizeWindow(req.Start, req.End, p.logger)
	if err != nil {
		return domain.TimeWindow{}, err
	}
	if w.Adjustment != domain.AdjustmentNone {
		p.metrics.WindowAdjustments.WithLabelValues(string(w.Adjustment)).Inc()
	}
	return w, nil
}

// load hands records to every sink in order and stops at the first failure.
func (p *Pipeline) load(ctx context.Context, records []domain.Observation) error {
	for _, s := range p.sinks {
		start := time.Now()
		err := s.LoadBatch(ctx, records)
		p.metrics.SinkDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			p.metrics.SinkWrites.WithLabelValues(s.Name(), "error").Inc()
			return &SinkError{Sink: s.Name(), Err: err}
		}
		p.metrics.SinkWrites.WithLabelValues(s.Name(), "success").Inc()
		p.metrics.SinkRecords.WithLabelValues(s.Name()).Add(float64(len(records)))
	}
	return nil
}

// SinkError reports which sink failed a batch.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string { return fmt.Sprintf("sink %s: %v", e.Sink, e.Err) }

func (e *SinkError) Unwrap() error { return e.Err }

// outcome maps an invocation error onto the pipeline_runs_total label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidTimestamp), errors.Is(err, domain.ErrInvalidQuery):
		return "invalid_request"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "upstream"
	case errors.Is(err, domain.ErrMalformedFeed):
		return "malformed"
	case errors.As(err, new(*SinkError)), errors.Is(err, domain.ErrPersistenceFailure):
		return "sink"
	default:
		return "error"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
