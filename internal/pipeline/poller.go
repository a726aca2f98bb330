package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/lightning-data-service/internal/domain"
	"github.com/couchcryptid/lightning-data-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Runner executes one pipeline invocation.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// PollerConfig controls the trailing window polled on each tick.
type PollerConfig struct {
	Interval time.Duration
	Lookback time.Duration
	Persist  bool
}

// Poller runs one independent invocation per tick over [cursor, now]. The
// cursor starts Lookback before the first tick and only advances when an
// invocation succeeds, so failed windows are retried by the next tick. The
// upstream treats both bounds as inclusive, so the next window starts one
// second after the last polled end.
type Poller struct {
	runner  Runner
	cfg     PollerConfig
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu     sync.Mutex
	cursor time.Time
}

// NewPoller creates a Poller. A nil clock uses real time.
func NewPoller(r Runner, cfg PollerConfig, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		runner:  r,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a tick has completed successfully.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("poller has not completed a successful run yet")
	}
	return nil
}

// Cursor returns the start of the next polled window.
func (p *Poller) Cursor() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

func (p *Poller) setCursor(t time.Time) {
	p.mu.Lock()
	p.cursor = t
	p.mu.Unlock()
}

// Run polls immediately and then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.cfg.Interval.String(), "lookback", p.cfg.Lookback.String())
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	p.setCursor(p.now().Add(-p.cfg.Lookback))

	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	now := p.now()
	cursor := p.Cursor()
	if !cursor.Before(now) {
		return
	}

	res, err := p.runner.Run(ctx, Request{
		Start:   cursor.Format(domain.TimeLayout),
		End:     now.Format(domain.TimeLayout),
		Format:  domain.FormatArray,
		Persist: p.cfg.Persist,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("poll failed, cursor kept", "error", err, "cursor", cursor.Format(domain.TimeLayout))
		return
	}

	p.setCursor(res.Window.End.Add(time.Second))
	p.ready.Store(true)
	p.logger.Debug("poll complete",
		"start", res.Window.StartString(),
		"end", res.Window.EndString(),
		"observations", len(res.Observations),
	)
}

func (p *Poller) now() time.Time {
	return p.clock.Now().UTC().Truncate(time.Second)
}
