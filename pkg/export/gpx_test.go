package export

import (
	"bytes"
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hefei93/TowerCollector/pkg/model"
)

// gpxDoc mirrors just enough of GPX 1.1 to verify our output parses.
type gpxDoc struct {
	XMLName  xml.Name `xml:"gpx"`
	Version  string   `xml:"version,attr"`
	Creator  string   `xml:"creator,attr"`
	Metadata struct {
		Name   string `xml:"name"`
		Time   string `xml:"time"`
		Bounds struct {
			MinLat float64 `xml:"minlat,attr"`
			MinLon float64 `xml:"minlon,attr"`
			MaxLat float64 `xml:"maxlat,attr"`
			MaxLon float64 `xml:"maxlon,attr"`
		} `xml:"bounds"`
	} `xml:"metadata"`
	Trk struct {
		Name     string `xml:"name"`
		Segments []struct {
			Points []struct {
				Lat  float64 `xml:"lat,attr"`
				Lon  float64 `xml:"lon,attr"`
				Ele  float64 `xml:"ele"`
				Time string  `xml:"time"`
				Desc string  `xml:"desc"`
			} `xml:"trkpt"`
		} `xml:"trkseg"`
	} `xml:"trk"`
}

func TestGPXOutputParses(t *testing.T) {
	f := NewGPXFormatter()
	var buf bytes.Buffer

	header := model.HeaderData{
		CollectorVersion: "1.0.0",
		FirstMeasuredAt:  1700000000000,
		LastMeasuredAt:   1700000120000,
		Boundaries:       model.Boundaries{MinLat: 52.1, MinLon: 20.9, MaxLat: 52.3, MaxLon: 21.1},
	}
	require.NoError(t, f.WriteHeader(&buf, header))

	first := model.Measurement{
		MCC: 260, MNC: 2, LAC: 10100, CellID: 424242,
		NetworkType: "LTE", SignalDBM: -87,
		Latitude: 52.2297, Longitude: 21.0122, GPSAltitude: 113.5,
		MeasuredAt: 1700000000000,
	}
	require.NoError(t, f.WriteEntry(&buf, first))
	require.NoError(t, f.WriteEntry(&buf, first))
	require.NoError(t, f.WriteNewSegment(&buf))

	second := first
	second.MeasuredAt = 1700000120000
	require.NoError(t, f.WriteEntry(&buf, second))
	require.NoError(t, f.WriteFooter(&buf))

	var doc gpxDoc
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))

	require.Equal(t, "1.1", doc.Version)
	require.Equal(t, "Tower Collector 1.0.0", doc.Creator)
	require.Equal(t, "2023-11-14T22:13:20Z", doc.Metadata.Time)
	require.Equal(t, 52.1, doc.Metadata.Bounds.MinLat)
	require.Equal(t, 21.1, doc.Metadata.Bounds.MaxLon)

	require.Len(t, doc.Trk.Segments, 2)
	require.Len(t, doc.Trk.Segments[0].Points, 2)
	require.Len(t, doc.Trk.Segments[1].Points, 1)

	pt := doc.Trk.Segments[0].Points[0]
	require.Equal(t, 52.2297, pt.Lat)
	require.Equal(t, 21.0122, pt.Lon)
	require.Equal(t, 113.5, pt.Ele)
	require.Equal(t, "2023-11-14T22:13:20Z", pt.Time)
	require.Equal(t, "260:2:10100:424242 LTE -87dBm", pt.Desc)
}

func TestGPXEscapesDescription(t *testing.T) {
	f := NewGPXFormatter()
	var buf bytes.Buffer

	require.NoError(t, f.WriteHeader(&buf, model.HeaderData{CollectorVersion: "1.0.0"}))
	m := model.Measurement{
		MCC: 1, MNC: 1, LAC: 1, CellID: 1,
		NetworkType: `GSM<&">`, SignalDBM: -100,
		Latitude: 1, Longitude: 1, MeasuredAt: 1,
	}
	require.NoError(t, f.WriteEntry(&buf, m))
	require.NoError(t, f.WriteFooter(&buf))

	var doc gpxDoc
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	// The raw characters must survive the escape/parse round trip.
	require.Contains(t, doc.Trk.Segments[0].Points[0].Desc, `GSM<&">`)
}
