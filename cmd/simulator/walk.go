package main

import (
	"math"
	"math/rand"

	"github.com/hefei93/TowerCollector/pkg/model"
)

// Movement and radio parameters for the simulated drive.
const (
	startLat = 52.2297
	startLon = 21.0122

	stepMeters      = 25
	handoverMeters  = 1500
	metersPerDegree = 111320
)

// walker produces a plausible measurement stream: a random walk with a
// slowly drifting heading, handing over to a new cell whenever it moves
// too far from the serving one.
type walker struct {
	rng *rand.Rand

	lat, lon float64
	heading  float64

	cellLat, cellLon float64
	lac              int
	cellID           int64
}

func newWalker(seed int64) *walker {
	rng := rand.New(rand.NewSource(seed))
	w := &walker{
		rng:     rng,
		lat:     startLat,
		lon:     startLon,
		heading: rng.Float64() * 360,
	}
	w.handover()
	return w
}

// step advances the walk and returns the measurement taken there.
func (w *walker) step(measuredAt int64) model.Measurement {
	w.heading = math.Mod(w.heading+w.rng.NormFloat64()*15+360, 360)
	rad := w.heading * math.Pi / 180
	w.lat += stepMeters * math.Cos(rad) / metersPerDegree
	w.lon += stepMeters * math.Sin(rad) / (metersPerDegree * math.Cos(w.lat*math.Pi/180))

	if w.distanceToCell() > handoverMeters {
		w.handover()
	}

	// Signal falls off with distance from the serving cell.
	signal := -55 - int(w.distanceToCell()/40)
	if signal < -113 {
		signal = -113
	}

	return model.Measurement{
		MCC:         260,
		MNC:         2,
		LAC:         w.lac,
		CellID:      w.cellID,
		NetworkType: "LTE",
		SignalDBM:   signal,
		Latitude:    w.lat,
		Longitude:   w.lon,
		GPSAccuracy: 3 + w.rng.Float64()*10,
		GPSSpeed:    stepMeters * (0.8 + w.rng.Float64()*0.4),
		GPSBearing:  w.heading,
		GPSAltitude: 100 + w.rng.Float64()*30,
		MeasuredAt:  measuredAt,
	}
}

// handover picks a new serving cell near the walker's position.
func (w *walker) handover() {
	w.lac = 10000 + w.rng.Intn(100)
	w.cellID = int64(400000 + w.rng.Intn(100000))
	offset := func() float64 {
		return (w.rng.Float64() - 0.5) * handoverMeters / metersPerDegree
	}
	w.cellLat = w.lat + offset()
	w.cellLon = w.lon + offset()
}

func (w *walker) distanceToCell() float64 {
	dLat := (w.lat - w.cellLat) * metersPerDegree
	dLon := (w.lon - w.cellLon) * metersPerDegree * math.Cos(w.lat*math.Pi/180)
	return math.Hypot(dLat, dLon)
}
