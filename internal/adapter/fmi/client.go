package fmi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/lightning-data-service/internal/domain"
	"github.com/couchcryptid/lightning-data-service/internal/observability"
)

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 5 * time.Second

// Client fetches lightning feeds from the FMI WFS service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a WFS client. System proxy settings are ignored: the
// transport connects directly.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: nil},
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch runs the stored query described by q and decodes the response into
// a RawFeed. Transport failures and non-200 responses wrap
// domain.ErrUpstreamUnavailable; undecodable documents wrap
// domain.ErrMalformedFeed.
func (c *Client) Fetch(ctx context.Context, q domain.Query) (domain.RawFeed, error) {
	fullURL := c.endpoint(q.APIKey) + "?" + q.Values().Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.RawFeed{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	start := time.Now()
	feed, err := c.do(req)
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		c.metrics.FetchRequests.WithLabelValues("success").Inc()
		c.logger.Debug("fetched lightning feed",
			"start", q.Window.StartString(),
			"end", q.Window.EndString(),
			"bbox", q.BBox,
			"observations", len(feed.Timestamps),
		)
	case errors.Is(err, domain.ErrMalformedFeed):
		c.metrics.FetchRequests.WithLabelValues("malformed").Inc()
	default:
		c.metrics.FetchRequests.WithLabelValues("error").Inc()
	}
	return feed, err
}

func (c *Client) do(req *http.Request) (domain.RawFeed, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawFeed{}, fmt.Errorf("%w: wfs request: %w", domain.ErrUpstreamUnavailable, redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.RawFeed{}, fmt.Errorf("%w: wfs status %d: %s", domain.ErrUpstreamUnavailable, resp.StatusCode, body)
	}

	return DecodeFeed(resp.Body)
}

// endpoint returns the WFS URL. Keyed access embeds the key in the path.
func (c *Client) endpoint(apiKey string) string {
	if apiKey == "" {
		return c.baseURL + "/wfs"
	}
	return c.baseURL + "/fmi-apikey/" + url.PathEscape(apiKey) + "/wfs"
}

// redact strips the request URL, which may embed the API key, from
// transport errors.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}
