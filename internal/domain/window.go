package domain

import (
	"fmt"
	"log/slog"
	"time"
)

// TimeLayout is the only accepted representation of a window bound.
const TimeLayout = "2006-01-02T15:04:05"

const (
	// MaxWindow is the longest interval the upstream lightning query accepts.
	MaxWindow = 168 * time.Hour

	// ClampSpan replaces the end of an oversized window, counted from its start.
	ClampSpan = 12 * time.Hour

	// RebaseSpan replaces the start of a reversed window, counted back from its end.
	RebaseSpan = 6 * time.Hour
)

// Adjustment records which correction, if any, the normalizer applied.
type Adjustment string

const (
	AdjustmentNone    Adjustment = "none"
	AdjustmentClamped Adjustment = "clamped"
	AdjustmentRebased Adjustment = "rebased"
)

// TimeWindow is a query interval. Bounds are calendar-naive: they are parsed
// as UTC and never converted between zones.
type TimeWindow struct {
	Start      time.Time
	End        time.Time
	Adjustment Adjustment
}

// StartString formats Start with TimeLayout.
func (w TimeWindow) StartString() string { return w.Start.Format(TimeLayout) }

// EndString formats End with TimeLayout.
func (w TimeWindow) EndString() string { return w.End.Format(TimeLayout) }

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// NormalizeWindow parses a requested [start, end] pair and rewrites it into a
// bounded, well-ordered window:
//   - end - start > MaxWindow: end becomes start + ClampSpan
//   - end < start: start becomes end - RebaseSpan
//   - otherwise the window is returned unchanged
//
// Corrections are policy, not errors. Each one is traced at debug level.
func NormalizeWindow(start, end string, logger *slog.Logger) (TimeWindow, error) {
	s, err := parseBound(start)
	if err != nil {
		return TimeWindow{}, err
	}
	e, err := parseBound(end)
	if err != nil {
		return TimeWindow{}, err
	}

	w := TimeWindow{Start: s, End: e, Adjustment: AdjustmentNone}
	delta := e.Sub(s)

	switch {
	case delta > MaxWindow:
		w.End = s.Add(ClampSpan)
		w.Adjustment = AdjustmentClamped
		trace(logger, "window exceeds maximum, clamping end", start, end, w)
	case delta < 0:
		w.Start = e.Add(-RebaseSpan)
		w.Adjustment = AdjustmentRebased
		trace(logger, "window end precedes start, rebasing start", start, end, w)
	}
	return w, nil
}

// DefaultWindow returns the window used when a caller supplies no bounds:
// the RebaseSpan leading up to now.
func DefaultWindow(now time.Time) TimeWindow {
	end := now.UTC().Truncate(time.Second)
	return TimeWindow{Start: end.Add(-RebaseSpan), End: end, Adjustment: AdjustmentNone}
}

func parseBound(value string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %w", ErrInvalidTimestamp, value, err)
	}
	return t, nil
}

func trace(logger *slog.Logger, msg, start, end string, w TimeWindow) {
	if logger == nil {
		return
	}
	logger.Debug(msg,
		"max_window", MaxWindow.String(),
		"requested_start", start,
		"requested_end", end,
		"start", w.StartString(),
		"end", w.EndString(),
	)
}
