package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/hefei93/TowerCollector/pkg/model"
)

// csvColumns is the export column layout: the upload payload columns plus
// the store-assigned ID, so exported rows can be cross-referenced with
// upload and delete logs.
var csvColumns = []string{
	"id", "mcc", "mnc", "lac", "cell_id", "net_type", "signal_dbm",
	"lat", "lon", "gps_accuracy", "gps_speed", "gps_bearing", "gps_altitude",
	"measured_at",
}

// CSVFormatter renders measurements as CSV rows. CSV has no segment
// concept, so WriteNewSegment and WriteFooter emit nothing.
type CSVFormatter struct{}

// NewCSVFormatter creates a CSV formatter.
func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

func (f *CSVFormatter) WriteHeader(w io.Writer, header model.HeaderData) error {
	return writeCSVRecord(w, csvColumns)
}

func (f *CSVFormatter) WriteEntry(w io.Writer, m model.Measurement) error {
	return writeCSVRecord(w, []string{
		strconv.FormatInt(m.ID, 10),
		strconv.Itoa(m.MCC),
		strconv.Itoa(m.MNC),
		strconv.Itoa(m.LAC),
		strconv.FormatInt(m.CellID, 10),
		m.NetworkType,
		strconv.Itoa(m.SignalDBM),
		csvFloat(m.Latitude),
		csvFloat(m.Longitude),
		csvFloat(m.GPSAccuracy),
		csvFloat(m.GPSSpeed),
		csvFloat(m.GPSBearing),
		csvFloat(m.GPSAltitude),
		strconv.FormatInt(m.MeasuredAt, 10),
	})
}

func (f *CSVFormatter) WriteNewSegment(w io.Writer) error { return nil }

func (f *CSVFormatter) WriteFooter(w io.Writer) error { return nil }

func writeCSVRecord(w io.Writer, record []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(record); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func csvFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
