package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// StoredQueryID names the upstream stored query for lightning strikes.
const StoredQueryID = "fmi::observations::lightning::simple"

// Query is the request descriptor sent to the upstream service.
type Query struct {
	BBox       string // minLon,minLat,maxLon,maxLat
	CRS        string // optional, e.g. "EPSG::4326"
	Window     TimeWindow
	Parameters []string
	APIKey     string
}

// NewQuery validates the bounding box and combines it with a normalized
// window and credentials.
func NewQuery(window TimeWindow, bbox, crs, apiKey string) (Query, error) {
	bbox = strings.ReplaceAll(strings.TrimSpace(bbox), " ", "")
	if err := validateBBox(bbox); err != nil {
		return Query{}, err
	}
	return Query{
		BBox:       bbox,
		CRS:        strings.TrimSpace(crs),
		Window:     window,
		Parameters: Parameters[:],
		APIKey:     apiKey,
	}, nil
}

// Values returns the WFS GetFeature parameters for the query. The API key is
// not included; it is part of the request path.
func (q Query) Values() url.Values {
	bbox := q.BBox
	if q.CRS != "" {
		bbox += "," + q.CRS
	}
	return url.Values{
		"service":        {"WFS"},
		"version":        {"2.0.0"},
		"request":        {"getFeature"},
		"storedquery_id": {StoredQueryID},
		"bbox":           {bbox},
		"parameters":     {strings.Join(q.Parameters, ",")},
		"starttime":      {q.Window.StartString()},
		"endtime":        {q.Window.EndString()},
	}
}

func validateBBox(bbox string) error {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return fmt.Errorf("%w: bbox %q must have four comma-separated values", ErrInvalidQuery, bbox)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return fmt.Errorf("%w: bbox value %q: %w", ErrInvalidQuery, p, err)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return fmt.Errorf("%w: bbox %q has min >= max", ErrInvalidQuery, bbox)
	}
	return nil
}
