package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/lightning-data-service/internal/domain"
	"github.com/couchcryptid/lightning-data-service/internal/observability"
	"github.com/couchcryptid/lightning-data-service/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBBox = "19.0,59.0,32.0,71.0"

// --- mocks ---

type mockFetcher struct {
	mu      sync.Mutex
	feed    domain.RawFeed
	err     error
	queries []domain.Query
}

func (m *mockFetcher) Fetch(_ context.Context, q domain.Query) (domain.RawFeed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	return m.feed, m.err
}

func (m *mockFetcher) calls() []domain.Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Query(nil), m.queries...)
}

type mockSink struct {
	name    string
	err     error
	order   *[]string
	batches [][]domain.Observation
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) LoadBatch(_ context.Context, records []domain.Observation) error {
	if m.order != nil {
		*m.order = append(*m.order, m.name)
	}
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, records)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFeed() domain.RawFeed {
	var names []string
	for range 3 {
		names = append(names, domain.Parameters[:]...)
	}
	values := []string{
		"-12.0", "1", "0", "0.4",
		"25.3", "3", "1", "1.2",
		"-4.1", "2", "0", "2.0",
	}
	return domain.RawFeed{
		Timestamps:      []string{"2020-01-01T00:00:01Z", "2020-01-01T00:00:05Z", "2020-01-01T00:10:00Z"},
		Coordinates:     []string{"60.1699 24.9384 ", "61.4978 23.7610 ", "65.0121 25.4651 "},
		ParameterNames:  names,
		ParameterValues: values,
	}
}

func testObservations() []domain.Observation {
	return []domain.Observation{
		{Time: "2020-01-01T00:00:01Z", Lat: "60.1699", Lon: "24.9384", PeakCurrent: "-12.0", Multiplicity: "1", CloudIndicator: "0", EllipseMajor: "0.4"},
		{Time: "2020-01-01T00:00:05Z", Lat: "61.4978", Lon: "23.7610", PeakCurrent: "25.3", Multiplicity: "3", CloudIndicator: "1", EllipseMajor: "1.2"},
		{Time: "2020-01-01T00:10:00Z", Lat: "65.0121", Lon: "25.4651", PeakCurrent: "-4.1", Multiplicity: "2", CloudIndicator: "0", EllipseMajor: "2.0"},
	}
}

func newPipeline(f pipeline.Fetcher, sinks ...pipeline.Sink) (*pipeline.Pipeline, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	opts := pipeline.Options{APIKey: "key", BBox: testBBox}
	return pipeline.New(f, sinks, opts, testLogger(), metrics), metrics
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	f := &mockFetcher{feed: testFeed()}
	p, metrics := newPipeline(f)

	res, err := p.Run(context.Background(), pipeline.Request{
		Start:  "2020-01-01T00:00:00",
		End:    "2020-01-01T06:00:00",
		Format: domain.FormatArray,
	})
	require.NoError(t, err)

	if diff := cmp.Diff(testObservations(), res.Observations); diff != "" {
		t.Fatalf("observations mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, domain.FormatArray, res.Output.Format)
	assert.Equal(t, 3, res.Output.Len())
	assert.Equal(t, domain.AdjustmentNone, res.Window.Adjustment)

	calls := f.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, testBBox, calls[0].BBox)
	assert.Equal(t, "key", calls[0].APIKey)
	assert.Equal(t, "2020-01-01T00:00:00", calls[0].Window.StartString())
	assert.Equal(t, "2020-01-01T06:00:00", calls[0].Window.EndString())

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PipelineRuns.WithLabelValues("success")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.Observations), 0)
}

func TestPipeline_Run_RequestOverridesBBox(t *testing.T) {
	f := &mockFetcher{feed: testFeed()}
	p, _ := newPipeline(f)

	_, err := p.Run(context.Background(), pipeline.Request{
		Start: "2020-01-01T00:00:00",
		End:   "2020-01-01T06:00:00",
		BBox:  "20, 60, 25, 65",
		CRS:   "EPSG::4326",
	})
	require.NoError(t, err)

	calls := f.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "20,60,25,65", calls[0].BBox)
	assert.Equal(t, "EPSG::4326", calls[0].CRS)
}

func TestPipeline_Run_DefaultWindow(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 30, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	f := &mockFetcher{feed: testFeed()}
	p, _ := newPipeline(f)

	res, err := p.Run(context.Background(), pipeline.Request{})
	require.NoError(t, err)
	assert.Equal(t, "2024-04-26T09:10:30", res.Window.StartString())
	assert.Equal(t, "2024-04-26T15:10:30", res.Window.EndString())
}

func TestPipeline_Run_WindowAdjustments(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantStart  string
		wantEnd    string
		kind       domain.Adjustment
	}{
		{"clamped", "2020-01-01T00:00:00", "2020-02-01T00:00:00", "2020-01-01T00:00:00", "2020-01-01T12:00:00", domain.AdjustmentClamped},
		{"rebased", "2020-01-02T00:00:00", "2020-01-01T00:00:00", "2019-12-31T18:00:00", "2020-01-01T00:00:00", domain.AdjustmentRebased},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockFetcher{feed: testFeed()}
			p, metrics := newPipeline(f)

			res, err := p.Run(context.Background(), pipeline.Request{Start: tt.start, End: tt.end})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, res.Window.StartString())
			assert.Equal(t, tt.wantEnd, res.Window.EndString())
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.WindowAdjustments.WithLabelValues(string(tt.kind))), 0)
		})
	}
}

func TestPipeline_Run_Failures(t *testing.T) {
	tests := []struct {
		name      string
		req       pipeline.Request
		fetcher   *mockFetcher
		wantErr   error
		outcome   string
		wantFetch bool
	}{
		{
			name:    "invalid timestamp",
			req:     pipeline.Request{Start: "2020-01-01 00:00:00", End: "2020-01-01T06:00:00"},
			fetcher: &mockFetcher{feed: testFeed()},
			wantErr: domain.ErrInvalidTimestamp,
			outcome: "invalid_request",
		},
		{
			name:    "only one bound",
			req:     pipeline.Request{Start: "2020-01-01T00:00:00"},
			fetcher: &mockFetcher{feed: testFeed()},
			wantErr: domain.ErrInvalidTimestamp,
			outcome: "invalid_request",
		},
		{
			name:    "invalid bbox",
			req:     pipeline.Request{Start: "2020-01-01T00:00:00", End: "2020-01-01T06:00:00", BBox: "1,2,3"},
			fetcher: &mockFetcher{feed: testFeed()},
			wantErr: domain.ErrInvalidQuery,
			outcome: "invalid_request",
		},
		{
			name:      "upstream unavailable",
			req:       pipeline.Request{Start: "2020-01-01T00:00:00", End: "2020-01-01T06:00:00"},
			fetcher:   &mockFetcher{err: domain.ErrUpstreamUnavailable},
			wantErr:   domain.ErrUpstreamUnavailable,
			outcome:   "upstream",
			wantFetch: true,
		},
		{
			name: "malformed feed",
			req:  pipeline.Request{Start: "2020-01-01T00:00:00", End: "2020-01-01T06:00:00"},
			fetcher: &mockFetcher{feed: domain.RawFeed{
				Timestamps:      []string{"2020-01-01T00:00:01Z"},
				Coordinates:     []string{"60.1 24.9"},
				ParameterNames:  []string{"peak_current", "multiplicity", "cloud_indicator"},
				ParameterValues: []string{"1", "2", "3"},
			}},
			wantErr:   domain.ErrMalformedFeed,
			outcome:   "malformed",
			wantFetch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &mockSink{name: "mock"}
			p, metrics := newPipeline(tt.fetcher, sink)

			tt.req.Persist = true
			_, err := p.Run(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantFetch, len(tt.fetcher.calls()) > 0)
			assert.Empty(t, sink.batches)
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.PipelineRuns.WithLabelValues(tt.outcome)), 0)
		})
	}
}

func TestPipeline_Run_PersistsTruncatedRecordsInOrder(t *testing.T) {
	var order []string
	first := &mockSink{name: "mysql", order: &order}
	second := &mockSink{name: "kafka", order: &order}
	p, metrics := newPipeline(&mockFetcher{feed: testFeed()}, first, second)

	res, err := p.Run(context.Background(), pipeline.Request{
		Start:   "2020-01-01T00:00:00",
		End:     "2020-01-01T06:00:00",
		Format:  domain.FormatCSV,
		Limit:   2,
		Persist: true,
	})
	require.NoError(t, err)

	assert.Len(t, res.Observations, 3)
	assert.Equal(t, []string{
		"2020-01-01T00:00:01Z,60.1699,24.9384,-12.0,1,0,0.4",
		"2020-01-01T00:00:05Z,61.4978,23.7610,25.3,3,1,1.2",
	}, res.Output.Lines)

	assert.Equal(t, []string{"mysql", "kafka"}, order)
	require.Len(t, first.batches, 1)
	if diff := cmp.Diff(testObservations()[:2], first.batches[0]); diff != "" {
		t.Fatalf("persisted mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.SinkRecords.WithLabelValues("kafka")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SinkWrites.WithLabelValues("mysql", "success")), 0)
}

func TestPipeline_Run_NoPersistSkipsSinks(t *testing.T) {
	sink := &mockSink{name: "mysql"}
	p, _ := newPipeline(&mockFetcher{feed: testFeed()}, sink)

	_, err := p.Run(context.Background(), pipeline.Request{
		Start: "2020-01-01T00:00:00",
		End:   "2020-01-01T06:00:00",
	})
	require.NoError(t, err)
	assert.Empty(t, sink.batches)
}

func TestPipeline_Run_SinkFailureStopsLaterSinks(t *testing.T) {
	var order []string
	failing := &mockSink{name: "mysql", order: &order, err: domain.ErrPersistenceFailure}
	later := &mockSink{name: "kafka", order: &order}
	p, metrics := newPipeline(&mockFetcher{feed: testFeed()}, failing, later)

	res, err := p.Run(context.Background(), pipeline.Request{
		Start:   "2020-01-01T00:00:00",
		End:     "2020-01-01T06:00:00",
		Persist: true,
	})
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)

	var sinkErr *pipeline.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "mysql", sinkErr.Sink)

	assert.Equal(t, []string{"mysql"}, order)
	assert.Len(t, res.Observations, 3)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PipelineRuns.WithLabelValues("sink")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SinkWrites.WithLabelValues("mysql", "error")), 0)
}

func TestPipeline_Run_KafkaFailureCountsAsSink(t *testing.T) {
	sink := &mockSink{name: "kafka", err: errors.New("broker down")}
	p, metrics := newPipeline(&mockFetcher{feed: testFeed()}, sink)

	_, err := p.Run(context.Background(), pipeline.Request{
		Start:   "2020-01-01T00:00:00",
		End:     "2020-01-01T06:00:00",
		Persist: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink kafka")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PipelineRuns.WithLabelValues("sink")), 0)
}

func TestPipeline_Run_EmptyFeed(t *testing.T) {
	p, _ := newPipeline(&mockFetcher{})

	res, err := p.Run(context.Background(), pipeline.Request{
		Start:  "2020-01-01T00:00:00",
		End:    "2020-01-01T06:00:00",
		Format: domain.FormatJSON,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Observations)
	assert.Equal(t, "[]", string(res.Output.JSON))
}
