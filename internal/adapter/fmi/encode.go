package fmi

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"text/template"

	"github.com/couchcryptid/lightning-data-service/internal/domain"
)

type member struct {
	ID    string
	Pos   string
	Time  string
	Name  string
	Value string
}

var documentTmpl = template.Must(template.New("wfs").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<wfs:FeatureCollection timeStamp="{{.TimeStamp}}" numberMatched="{{len .Members}}" numberReturned="{{len .Members}}"
    xmlns:wfs="` + NamespaceWFS + `"
    xmlns:gml="` + NamespaceGML + `"
    xmlns:BsWfs="` + NamespaceBsWfs + `">
{{- range .Members}}
  <wfs:member>
    <BsWfs:BsWfsElement gml:id="{{.ID}}">
      <BsWfs:Location>
        <gml:Point gml:id="P{{.ID}}" srsDimension="2" srsName="http://www.opengis.net/def/crs/EPSG/0/4258">
          <gml:pos>{{.Pos}} </gml:pos>
        </gml:Point>
      </BsWfs:Location>
      <BsWfs:Time>{{.Time}}</BsWfs:Time>
      <BsWfs:ParameterName>{{.Name}}</BsWfs:ParameterName>
      <BsWfs:ParameterValue>{{.Value}}</BsWfs:ParameterValue>
    </BsWfs:BsWfsElement>
  </wfs:member>
{{- end}}
</wfs:FeatureCollection>
`))

// EncodeFeed writes feed as a WFS simple-features document, repeating the
// time and position for each parameter member the way the service does.
// timeStamp is the collection generation time.
func EncodeFeed(w io.Writer, feed domain.RawFeed, timeStamp string) error {
	if err := feed.Validate(); err != nil {
		return err
	}

	members := make([]member, 0, len(feed.ParameterValues))
	for i, value := range feed.ParameterValues {
		g := i / domain.ParamsPerObservation
		members = append(members, member{
			ID:    fmt.Sprintf("BsWfsElement.1.%d.%d", g+1, i%domain.ParamsPerObservation+1),
			Pos:   escape(feed.Coordinates[g]),
			Time:  escape(feed.Timestamps[g]),
			Name:  escape(feed.ParameterNames[i]),
			Value: escape(value),
		})
	}

	return documentTmpl.Execute(w, struct {
		TimeStamp string
		Members   []member
	}{TimeStamp: escape(timeStamp), Members: members})
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
