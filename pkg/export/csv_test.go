package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hefei93/TowerCollector/pkg/model"
)

func TestCSVOutput(t *testing.T) {
	f := NewCSVFormatter()
	var buf bytes.Buffer

	require.NoError(t, f.WriteHeader(&buf, model.HeaderData{CollectorVersion: "1.0.0"}))
	require.NoError(t, f.WriteEntry(&buf, model.Measurement{
		ID:  7,
		MCC: 260, MNC: 2, LAC: 10100, CellID: 424242,
		NetworkType: "LTE", SignalDBM: -87,
		Latitude: 52.2297, Longitude: 21.0122,
		GPSAccuracy: 4.5, GPSSpeed: 1.25, GPSBearing: 270, GPSAltitude: 113.5,
		MeasuredAt: 1700000000000,
	}))
	// No trailing output: CSV has no segments or footer.
	require.NoError(t, f.WriteNewSegment(&buf))
	require.NoError(t, f.WriteFooter(&buf))

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, csvColumns, records[0])
	require.Equal(t, []string{
		"7", "260", "2", "10100", "424242", "LTE", "-87",
		"52.2297", "21.0122", "4.5", "1.25", "270", "113.5",
		"1700000000000",
	}, records[1])
}
