package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/lightning-data-service/internal/adapter/http"
	"github.com/couchcryptid/lightning-data-service/internal/domain"
	"github.com/couchcryptid/lightning-data-service/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRunner struct {
	err  error
	last pipeline.Request
}

func (m *mockRunner) Run(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
	m.last = req
	if m.err != nil {
		return pipeline.Result{}, m.err
	}
	w, err := domain.NormalizeWindow("2020-01-01T00:00:00", "2020-01-01T06:00:00", nil)
	if err != nil {
		return pipeline.Result{}, err
	}
	records := []domain.Observation{
		{Time: "2020-01-01T00:00:01Z", Lat: "60.1699", Lon: "24.9384", PeakCurrent: "-12.0", Multiplicity: "1", CloudIndicator: "0", EllipseMajor: "0.4"},
		{Time: "2020-01-01T00:00:05Z", Lat: "61.4978", Lon: "23.7610", PeakCurrent: "25.3", Multiplicity: "3", CloudIndicator: "1", EllipseMajor: "1.2"},
	}
	return pipeline.Result{Window: w, Observations: records, Output: domain.Render(records, req.Format, req.Limit)}, nil
}

func newTestServer(readyErr error, runner *mockRunner) *httpadapter.Server {
	if runner == nil {
		runner = &mockRunner{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, runner, logger)
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("not ready yet"), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestChecks_FirstFailureWins(t *testing.T) {
	checks := httpadapter.Checks{&mockReadiness{}, &mockReadiness{err: errors.New("db down")}, &mockReadiness{err: errors.New("later")}}
	assert.EqualError(t, checks.CheckReadiness(context.Background()), "db down")
	assert.NoError(t, httpadapter.Checks{}.CheckReadiness(context.Background()))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestObservations_Formats(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		contentType string
		body        string
	}{
		{
			name:        "array by default",
			query:       "",
			contentType: "text/plain; charset=utf-8",
			body: "2020-01-01T00:00:01Z 60.1699 24.9384 -12.0 1 0 0.4\n" +
				"2020-01-01T00:00:05Z 61.4978 23.7610 25.3 3 1 1.2\n",
		},
		{
			name:        "csv limited",
			query:       "?format=csv&lines=1",
			contentType: "text/csv; charset=utf-8",
			body:        "2020-01-01T00:00:01Z,60.1699,24.9384,-12.0,1,0,0.4\n",
		},
		{
			name:        "json",
			query:       "?format=JSON&lines=1",
			contentType: "application/json",
			body: `[{"time":"2020-01-01T00:00:01Z","lat":"60.1699","lon":"24.9384","peakcurrent":"-12.0",` +
				`"multiplicity":"1","cloudindicator":"0","ellipsemajor":"0.4"}]` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(nil, nil)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/observations"+tt.query, nil)

			srv.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.body, rec.Body.String())
			assert.Equal(t, "2020-01-01T00:00:00", rec.Header().Get("X-Window-Start"))
		})
	}
}

func TestObservations_PassesQueryToRunner(t *testing.T) {
	runner := &mockRunner{}
	srv := newTestServer(nil, runner)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/observations?starttime=2020-01-01T00:00:00&endtime=2020-01-01T06:00:00&bbox=20,60,25,65&crs=EPSG::4326&lines=5", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.Request{
		Start:  "2020-01-01T00:00:00",
		End:    "2020-01-01T06:00:00",
		BBox:   "20,60,25,65",
		CRS:    "EPSG::4326",
		Format: domain.FormatArray,
		Limit:  5,
	}, runner.last)
}

func TestObservations_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid timestamp", fmt.Errorf("%w \"x\"", domain.ErrInvalidTimestamp), http.StatusBadRequest},
		{"invalid query", domain.ErrInvalidQuery, http.StatusBadRequest},
		{"upstream", fmt.Errorf("%w: wfs status 503", domain.ErrUpstreamUnavailable), http.StatusBadGateway},
		{"malformed", domain.ErrMalformedFeed, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(nil, &mockRunner{err: tt.err})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/observations", nil)

			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestObservations_InvalidLines(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/observations?lines=ten", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
