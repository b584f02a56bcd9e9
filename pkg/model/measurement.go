package model

import (
	"fmt"
	"time"
)

// Measurement is one recorded cell observation together with the GPS fix it
// was taken at. Timestamps are Unix epoch milliseconds, matching the wire and
// export formats. A measurement is immutable once persisted; the ID is
// assigned by the store on write.
type Measurement struct {
	ID          int64   `json:"id"`
	MCC         int     `json:"mcc" validate:"min=1,max=999"`
	MNC         int     `json:"mnc" validate:"min=0,max=999"`
	LAC         int     `json:"lac" validate:"min=0"`
	CellID      int64   `json:"cell_id" validate:"min=0"`
	NetworkType string  `json:"net_type,omitempty"`
	SignalDBM   int     `json:"signal_dbm,omitempty"`
	Latitude    float64 `json:"lat" validate:"min=-90,max=90"`
	Longitude   float64 `json:"lon" validate:"min=-180,max=180"`
	GPSAccuracy float64 `json:"gps_accuracy,omitempty" validate:"min=0"`
	GPSSpeed    float64 `json:"gps_speed,omitempty" validate:"min=0"`
	GPSBearing  float64 `json:"gps_bearing,omitempty" validate:"min=0,max=360"`
	GPSAltitude float64 `json:"gps_altitude,omitempty"`
	MeasuredAt  int64   `json:"measured_at" validate:"required,min=1"`
}

// MeasuredTime converts the epoch-millisecond timestamp to a time.Time in UTC.
func (m Measurement) MeasuredTime() time.Time {
	return time.UnixMilli(m.MeasuredAt).UTC()
}

// CellKey is the canonical identity of the observed cell. Two measurements of
// the same physical cell share a key regardless of where they were taken.
func (m Measurement) CellKey() string {
	return fmt.Sprintf("%d:%d:%d:%d", m.MCC, m.MNC, m.LAC, m.CellID)
}

func (m Measurement) String() string {
	return fmt.Sprintf("Measurement{id=%d cell=%s lat=%.6f lon=%.6f measured_at=%d}",
		m.ID, m.CellKey(), m.Latitude, m.Longitude, m.MeasuredAt)
}

// Boundaries is the geographic extent of a set of measurements.
type Boundaries struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Extend grows the boundaries to include the given point.
func (b *Boundaries) Extend(lat, lon float64) {
	if lat < b.MinLat {
		b.MinLat = lat
	}
	if lat > b.MaxLat {
		b.MaxLat = lat
	}
	if lon < b.MinLon {
		b.MinLon = lon
	}
	if lon > b.MaxLon {
		b.MaxLon = lon
	}
}

// Statistics summarizes the store contents for diagnostics and the stats API.
type Statistics struct {
	TotalMeasurements uint64 `json:"total_measurements"`
	UniqueCells       uint64 `json:"unique_cells"`
	SizeBytes         uint64 `json:"size_bytes"`
	FirstMeasuredAt   int64  `json:"first_measured_at"`
	LastMeasuredAt    int64  `json:"last_measured_at"`
}

func (s Statistics) String() string {
	return fmt.Sprintf("Statistics{total=%d cells=%d first=%d last=%d}",
		s.TotalMeasurements, s.UniqueCells, s.FirstMeasuredAt, s.LastMeasuredAt)
}

// HeaderData is assembled from the first/last measurement and the aggregate
// boundaries for the duration of one export. It never persists.
type HeaderData struct {
	CollectorVersion string
	FirstMeasuredAt  int64
	LastMeasuredAt   int64
	Boundaries       Boundaries
}
