package fmi

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/lightning-data-service/internal/domain"
)

// XML namespaces of the WFS simple-features response.
const (
	NamespaceWFS   = "http://www.opengis.net/wfs/2.0"
	NamespaceBsWfs = "http://xml.fmi.fi/schema/wfs/2.0"
	NamespaceGML   = "http://www.opengis.net/gml/3.2"
)

// document holds the four element collections in document order. In the
// simple form every member repeats the time and position, so all four have
// one entry per parameter value.
type document struct {
	times  []string
	pos    []string
	names  []string
	values []string
}

// DecodeFeed reads a WFS simple-features document and returns the flattened
// feed with one time and position per observation.
func DecodeFeed(r io.Reader) (domain.RawFeed, error) {
	doc, err := decodeDocument(r)
	if err != nil {
		return domain.RawFeed{}, err
	}
	return doc.feed()
}

func decodeDocument(r io.Reader) (document, error) {
	var doc document
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return doc, nil
		}
		if err != nil {
			return document{}, fmt.Errorf("%w: decode xml: %w", domain.ErrMalformedFeed, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		target := doc.target(start.Name)
		if target == nil {
			continue
		}
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return document{}, fmt.Errorf("%w: decode %s: %w", domain.ErrMalformedFeed, start.Name.Local, err)
		}
		*target = append(*target, text)
	}
}

func (d *document) target(name xml.Name) *[]string {
	switch {
	case name.Space == NamespaceBsWfs && name.Local == "Time":
		return &d.times
	case name.Space == NamespaceGML && name.Local == "pos":
		return &d.pos
	case name.Space == NamespaceBsWfs && name.Local == "ParameterName":
		return &d.names
	case name.Space == NamespaceBsWfs && name.Local == "ParameterValue":
		return &d.values
	default:
		return nil
	}
}

// feed keeps every ParamsPerObservation-th time and position. The counts
// are checked first so a partial member cannot shift the stride, and every
// member of a group must repeat the group's time and position.
func (d document) feed() (domain.RawFeed, error) {
	n := len(d.values)
	if len(d.times) != n || len(d.pos) != n || len(d.names) != n {
		return domain.RawFeed{}, fmt.Errorf("%w: %d times, %d positions, %d names, %d values",
			domain.ErrMalformedFeed, len(d.times), len(d.pos), len(d.names), n)
	}
	if n%domain.ParamsPerObservation != 0 {
		return domain.RawFeed{}, fmt.Errorf("%w: %d members is not a multiple of %d",
			domain.ErrMalformedFeed, n, domain.ParamsPerObservation)
	}

	groups := n / domain.ParamsPerObservation
	feed := domain.RawFeed{
		Timestamps:      make([]string, 0, groups),
		Coordinates:     make([]string, 0, groups),
		ParameterNames:  make([]string, n),
		ParameterValues: make([]string, n),
	}
	for i := 0; i < n; i += domain.ParamsPerObservation {
		if err := d.checkGroup(i); err != nil {
			return domain.RawFeed{}, err
		}
		feed.Timestamps = append(feed.Timestamps, d.times[i])
		feed.Coordinates = append(feed.Coordinates, d.pos[i])
	}
	for i := range n {
		feed.ParameterNames[i] = strings.TrimSpace(d.names[i])
		feed.ParameterValues[i] = strings.TrimSpace(d.values[i])
	}
	return feed, nil
}

func (d document) checkGroup(first int) error {
	t, p := strings.TrimSpace(d.times[first]), strings.TrimSpace(d.pos[first])
	for i := first + 1; i < first+domain.ParamsPerObservation; i++ {
		if strings.TrimSpace(d.times[i]) != t || strings.TrimSpace(d.pos[i]) != p {
			return fmt.Errorf("%w: member %d (%s at %q) does not match its group (%s at %q)",
				domain.ErrMalformedFeed, i, strings.TrimSpace(d.times[i]), strings.TrimSpace(d.pos[i]), t, p)
		}
	}
	return nil
}
