package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hefei93/TowerCollector/pkg/model"
)

// Store keeps measurements in memory. Data is lost on restart.
// Useful for testing and development.
type Store struct {
	mu           sync.RWMutex
	measurements []model.Measurement
	nextID       int64
}

// New creates an in-memory storage backend.
func New() *Store {
	return &Store{
		measurements: make([]model.Measurement, 0, 1024),
		nextID:       1,
	}
}

// Write stores measurements and assigns their IDs.
func (s *Store) Write(ctx context.Context, measurements []model.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range measurements {
		m.ID = s.nextID
		s.nextID++
		s.measurements = append(s.measurements, m)
	}
	sortCanonical(s.measurements)
	return nil
}

// Count returns the number of stored measurements.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.measurements), nil
}

// First returns the oldest measurement, nil when empty.
func (s *Store) First(ctx context.Context) (*model.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.measurements) == 0 {
		return nil, nil
	}
	m := s.measurements[0]
	return &m, nil
}

// Last returns the newest measurement, nil when empty.
func (s *Store) Last(ctx context.Context) (*model.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.measurements) == 0 {
		return nil, nil
	}
	m := s.measurements[len(s.measurements)-1]
	return &m, nil
}

// Page returns up to limit measurements starting at offset in canonical order.
func (s *Store) Page(ctx context.Context, offset, limit int) ([]model.Measurement, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("memory: invalid page offset=%d limit=%d", offset, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.measurements) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.measurements) {
		end = len(s.measurements)
	}

	page := make([]model.Measurement, end-offset)
	copy(page, s.measurements[offset:end])
	return page, nil
}

// Boundaries returns the geographic extent of all measurements.
func (s *Store) Boundaries(ctx context.Context) (model.Boundaries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.measurements) == 0 {
		return model.Boundaries{}, nil
	}

	b := model.Boundaries{
		MinLat: s.measurements[0].Latitude,
		MaxLat: s.measurements[0].Latitude,
		MinLon: s.measurements[0].Longitude,
		MaxLon: s.measurements[0].Longitude,
	}
	for _, m := range s.measurements[1:] {
		b.Extend(m.Latitude, m.Longitude)
	}
	return b, nil
}

// Stats returns aggregate statistics.
func (s *Store) Stats(ctx context.Context) (*model.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.Statistics{
		TotalMeasurements: uint64(len(s.measurements)),
	}
	if len(s.measurements) == 0 {
		return stats, nil
	}

	cells := make(map[string]struct{})
	for _, m := range s.measurements {
		cells[m.CellKey()] = struct{}{}
	}
	stats.UniqueCells = uint64(len(cells))
	stats.FirstMeasuredAt = s.measurements[0].MeasuredAt
	stats.LastMeasuredAt = s.measurements[len(s.measurements)-1].MeasuredAt

	// Rough size estimate, each row is in the order of 100 bytes.
	stats.SizeBytes = uint64(len(s.measurements)) * 100
	return stats, nil
}

// QuickDump renders a bounded snapshot for diagnostic reports.
func (s *Store) QuickDump(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "memory store: %d measurements, next_id=%d\n", len(s.measurements), s.nextID)
	const edge = 3
	for i, m := range s.measurements {
		if i >= edge && i < len(s.measurements)-edge {
			if i == edge {
				sb.WriteString("...\n")
			}
			continue
		}
		sb.WriteString(m.String())
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// Delete removes measurements by ID.
func (s *Store) Delete(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.measurements[:0]
	removed := 0
	for _, m := range s.measurements {
		if _, ok := drop[m.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	s.measurements = kept
	return removed, nil
}

// DeleteBefore removes measurements measured strictly before the cutoff.
func (s *Store) DeleteBefore(ctx context.Context, measuredBefore int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.measurements[:0]
	removed := 0
	for _, m := range s.measurements {
		if m.MeasuredAt < measuredBefore {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	s.measurements = kept
	return removed, nil
}

// Close is a no-op for memory storage.
func (s *Store) Close() error {
	return nil
}

func sortCanonical(measurements []model.Measurement) {
	sort.Slice(measurements, func(i, j int) bool {
		if measurements[i].MeasuredAt != measurements[j].MeasuredAt {
			return measurements[i].MeasuredAt < measurements[j].MeasuredAt
		}
		return measurements[i].ID < measurements[j].ID
	})
}
