package domain

import (
	"fmt"
	"strings"
)

// ParamsPerObservation is the number of parameter values the upstream
// service reports for each strike.
const ParamsPerObservation = 4

// Parameters lists the upstream parameter names in the order they appear
// within every group of the feed.
var Parameters = [ParamsPerObservation]string{
	"peak_current",
	"multiplicity",
	"cloud_indicator",
	"ellipse_major",
}

// RawFeed is the flattened decode of an upstream response. Timestamps and
// Coordinates hold one entry per observation; ParameterNames and
// ParameterValues hold ParamsPerObservation entries per observation.
type RawFeed struct {
	Timestamps      []string
	Coordinates     []string // "lat lon"
	ParameterNames  []string
	ParameterValues []string
}

// Groups returns the number of observations the feed claims to carry.
func (f RawFeed) Groups() int {
	return len(f.ParameterValues) / ParamsPerObservation
}

// Validate checks the cardinality and ordering invariants that keep the four
// sequences aligned.
func (f RawFeed) Validate() error {
	if len(f.ParameterNames) != len(f.ParameterValues) {
		return fmt.Errorf("%w: %d parameter names for %d values",
			ErrMalformedFeed, len(f.ParameterNames), len(f.ParameterValues))
	}
	if len(f.ParameterValues)%ParamsPerObservation != 0 {
		return fmt.Errorf("%w: %d parameter values is not a multiple of %d",
			ErrMalformedFeed, len(f.ParameterValues), ParamsPerObservation)
	}
	groups := f.Groups()
	if len(f.Timestamps) != groups {
		return fmt.Errorf("%w: %d timestamps for %d observations", ErrMalformedFeed, len(f.Timestamps), groups)
	}
	if len(f.Coordinates) != groups {
		return fmt.Errorf("%w: %d coordinates for %d observations", ErrMalformedFeed, len(f.Coordinates), groups)
	}
	for i, name := range f.ParameterNames {
		if want := Parameters[i%ParamsPerObservation]; strings.TrimSpace(name) != want {
			return fmt.Errorf("%w: parameter %d is %q, expected %q", ErrMalformedFeed, i, name, want)
		}
	}
	return nil
}

// Observation is one reconstructed lightning strike. Values are kept as the
// upstream text so nothing is lost to float formatting.
type Observation struct {
	Time           string `json:"time"`
	Lat            string `json:"lat"`
	Lon            string `json:"lon"`
	PeakCurrent    string `json:"peakcurrent"`
	Multiplicity   string `json:"multiplicity"`
	CloudIndicator string `json:"cloudindicator"`
	EllipseMajor   string `json:"ellipsemajor"`
}

// Fields returns the values in output order.
func (o Observation) Fields() []string {
	return []string{o.Time, o.Lat, o.Lon, o.PeakCurrent, o.Multiplicity, o.CloudIndicator, o.EllipseMajor}
}

// Line returns the space-separated raw row.
func (o Observation) Line() string {
	return strings.Join(o.Fields(), " ")
}

// Reassemble rebuilds observations from a flattened feed. Values are taken
// in chunks of ParamsPerObservation; chunk i is paired with Timestamps[i] and
// Coordinates[i], both trimmed. Field identity is positional within a chunk
// and values are copied verbatim. Output order is feed order.
func Reassemble(feed RawFeed) ([]Observation, error) {
	if err := feed.Validate(); err != nil {
		return nil, err
	}

	out := make([]Observation, 0, feed.Groups())
	for i := range feed.Groups() {
		lat, lon, err := splitCoordinate(feed.Coordinates[i])
		if err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
		chunk := feed.ParameterValues[i*ParamsPerObservation : (i+1)*ParamsPerObservation]
		out = append(out, Observation{
			Time:           strings.TrimSpace(feed.Timestamps[i]),
			Lat:            lat,
			Lon:            lon,
			PeakCurrent:    chunk[0],
			Multiplicity:   chunk[1],
			CloudIndicator: chunk[2],
			EllipseMajor:   chunk[3],
		})
	}
	return out, nil
}

func splitCoordinate(pos string) (string, string, error) {
	parts := strings.Fields(pos)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: coordinate %q is not a lat/lon pair", ErrMalformedFeed, pos)
	}
	return parts[0], parts[1], nil
}
