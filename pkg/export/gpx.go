package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hefei93/TowerCollector/pkg/model"
)

const gpxNamespace = "http://www.topografix.com/GPX/1/1"

// GPXFormatter renders measurements as a GPX 1.1 track. Every measurement
// becomes a track point carrying elevation, time, and the observed cell in
// its description; a long gap between points starts a new track segment.
type GPXFormatter struct{}

// NewGPXFormatter creates a GPX formatter.
func NewGPXFormatter() *GPXFormatter {
	return &GPXFormatter{}
}

func (f *GPXFormatter) WriteHeader(w io.Writer, header model.HeaderData) error {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	fmt.Fprintf(&sb, "<gpx xmlns=%q version=\"1.1\" creator=%q>\n",
		gpxNamespace, "Tower Collector "+header.CollectorVersion)
	sb.WriteString("  <metadata>\n")
	sb.WriteString("    <name>Tower Collector measurements</name>\n")
	fmt.Fprintf(&sb, "    <time>%s</time>\n", gpxTime(header.FirstMeasuredAt))
	b := header.Boundaries
	fmt.Fprintf(&sb, "    <bounds minlat=%q minlon=%q maxlat=%q maxlon=%q/>\n",
		gpxCoord(b.MinLat), gpxCoord(b.MinLon), gpxCoord(b.MaxLat), gpxCoord(b.MaxLon))
	sb.WriteString("  </metadata>\n")
	sb.WriteString("  <trk>\n")
	fmt.Fprintf(&sb, "    <name>%s - %s</name>\n",
		gpxTime(header.FirstMeasuredAt), gpxTime(header.LastMeasuredAt))
	sb.WriteString("    <trkseg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func (f *GPXFormatter) WriteEntry(w io.Writer, m model.Measurement) error {
	desc := fmt.Sprintf("%s %s %ddBm", m.CellKey(), m.NetworkType, m.SignalDBM)

	var sb strings.Builder
	fmt.Fprintf(&sb, "      <trkpt lat=%q lon=%q>\n", gpxCoord(m.Latitude), gpxCoord(m.Longitude))
	fmt.Fprintf(&sb, "        <ele>%s</ele>\n", gpxCoord(m.GPSAltitude))
	fmt.Fprintf(&sb, "        <time>%s</time>\n", gpxTime(m.MeasuredAt))
	fmt.Fprintf(&sb, "        <desc>%s</desc>\n", xmlEscape(desc))
	sb.WriteString("      </trkpt>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func (f *GPXFormatter) WriteNewSegment(w io.Writer) error {
	_, err := io.WriteString(w, "    </trkseg>\n    <trkseg>\n")
	return err
}

func (f *GPXFormatter) WriteFooter(w io.Writer) error {
	_, err := io.WriteString(w, "    </trkseg>\n  </trk>\n</gpx>\n")
	return err
}

func gpxCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func gpxTime(epochMillis int64) string {
	return time.UnixMilli(epochMillis).UTC().Format(time.RFC3339)
}

// xmlEscape escapes element content. Network type strings come from
// ingest and cannot be trusted to be XML-safe.
func xmlEscape(s string) string {
	var sb strings.Builder
	if err := xml.EscapeText(&sb, []byte(s)); err != nil {
		return s
	}
	return sb.String()
}
