package upload

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/hefei93/TowerCollector/pkg/model"
)

// csvHeader is the column layout the collection endpoint expects.
var csvHeader = []string{
	"mcc", "mnc", "lac", "cell_id", "net_type", "signal",
	"lat", "lon", "accuracy", "speed", "bearing", "altitude", "measured_at",
}

// FormatCSV renders measurements as one upload payload: a header row
// followed by one row per measurement.
func FormatCSV(measurements []model.Measurement) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("upload: write csv header: %w", err)
	}
	for _, m := range measurements {
		record := []string{
			strconv.Itoa(m.MCC),
			strconv.Itoa(m.MNC),
			strconv.Itoa(m.LAC),
			strconv.FormatInt(m.CellID, 10),
			m.NetworkType,
			strconv.Itoa(m.SignalDBM),
			formatFloat(m.Latitude),
			formatFloat(m.Longitude),
			formatFloat(m.GPSAccuracy),
			formatFloat(m.GPSSpeed),
			formatFloat(m.GPSBearing),
			formatFloat(m.GPSAltitude),
			strconv.FormatInt(m.MeasuredAt, 10),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("upload: write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("upload: flush csv: %w", err)
	}
	return sb.String(), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
