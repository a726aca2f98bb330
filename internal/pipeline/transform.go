package pipeline

import (
	"github.com/couchcryptid/lightning-data-service/internal/domain"
)

// transform rebuilds observations from the feed and renders them. The full
// record set is returned alongside the rendered (possibly truncated) output.
func (p *Pipeline) transform(feed domain.RawFeed, format domain.Format, limit int) ([]domain.Observation, domain.Rendered, error) {
	records, err := domain.Reassemble(feed)
	if err != nil {
		return nil, domain.Rendered{}, err
	}
	p.metrics.Observations.Add(float64(len(records)))

	out := domain.Render(records, format, limit)
	if out.Len() < len(records) {
		p.logger.Debug("output truncated", "limit", limit, "observations", len(records))
	}
	return records, out, nil
}
