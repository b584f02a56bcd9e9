package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/model"
)

// MaxFutureDrift bounds how far ahead of the server clock a measurement
// timestamp may be. Device clocks drift; anything beyond this is a bug or
// garbage.
const MaxFutureDrift = 24 * time.Hour

var (
	// ErrNoMeasurements is returned when an ingest request carries an
	// empty batch.
	ErrNoMeasurements = errors.New("request contains no measurements")

	// ErrTooManyMeasurements is returned when a single request exceeds the
	// batch cap.
	ErrTooManyMeasurements = fmt.Errorf("too many measurements in request (max %d)", config.MaxMeasurementsPerRequest)
)

// validate evaluates the declarative range tags on model.Measurement.
var validate = validator.New()

// ValidateBatch checks request-level limits.
func ValidateBatch(measurements []model.Measurement) error {
	if len(measurements) == 0 {
		return ErrNoMeasurements
	}
	if len(measurements) > config.MaxMeasurementsPerRequest {
		return fmt.Errorf("%w: got %d", ErrTooManyMeasurements, len(measurements))
	}
	return nil
}

// ValidateMeasurement checks one measurement against the model's tags plus
// the clock sanity bound.
func ValidateMeasurement(m model.Measurement, now time.Time) error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("measurement invalid: %w", err)
	}
	if m.MeasuredTime().After(now.Add(MaxFutureDrift)) {
		return fmt.Errorf("measured_at %s is too far in the future", m.MeasuredTime().Format(time.RFC3339))
	}
	return nil
}
