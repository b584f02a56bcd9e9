package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hefei93/TowerCollector/pkg/model"
)

func testMeasurement(measuredAt int64, cellID int64) model.Measurement {
	return model.Measurement{
		MCC:         260,
		MNC:         2,
		LAC:         10100,
		CellID:      cellID,
		NetworkType: "LTE",
		SignalDBM:   -95,
		Latitude:    52.2297,
		Longitude:   21.0122,
		GPSAccuracy: 12.5,
		MeasuredAt:  measuredAt,
	}
}

func TestWriteAssignsIDsAndSorts(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Write(ctx, []model.Measurement{
		testMeasurement(3000, 1),
		testMeasurement(1000, 2),
		testMeasurement(2000, 3),
	})
	require.NoError(t, err)

	page, err := s.Page(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)

	require.Equal(t, int64(1000), page[0].MeasuredAt)
	require.Equal(t, int64(2000), page[1].MeasuredAt)
	require.Equal(t, int64(3000), page[2].MeasuredAt)
	for _, m := range page {
		require.NotZero(t, m.ID)
	}
}

func TestFirstLastEmpty(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.First(ctx)
	require.NoError(t, err)
	require.Nil(t, first)

	last, err := s.Last(ctx)
	require.NoError(t, err)
	require.Nil(t, last)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestFirstLast(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, []model.Measurement{
		testMeasurement(2000, 1),
		testMeasurement(1000, 2),
		testMeasurement(3000, 3),
	}))

	first, err := s.First(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1000), first.MeasuredAt)

	last, err := s.Last(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3000), last.MeasuredAt)
}

func TestPageWindows(t *testing.T) {
	s := New()
	ctx := context.Background()

	var batch []model.Measurement
	for i := 0; i < 10; i++ {
		batch = append(batch, testMeasurement(int64(1000+i), int64(i)))
	}
	require.NoError(t, s.Write(ctx, batch))

	page, err := s.Page(ctx, 0, 4)
	require.NoError(t, err)
	require.Len(t, page, 4)
	require.Equal(t, int64(1000), page[0].MeasuredAt)

	page, err = s.Page(ctx, 8, 4)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, int64(1009), page[1].MeasuredAt)

	page, err = s.Page(ctx, 50, 4)
	require.NoError(t, err)
	require.Empty(t, page)

	_, err = s.Page(ctx, -1, 4)
	require.Error(t, err)
}

func TestBoundaries(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := testMeasurement(1000, 1)
	a.Latitude, a.Longitude = 50.0, 19.9
	b := testMeasurement(2000, 2)
	b.Latitude, b.Longitude = 54.3, 18.6
	require.NoError(t, s.Write(ctx, []model.Measurement{a, b}))

	bounds, err := s.Boundaries(ctx)
	require.NoError(t, err)
	require.Equal(t, 50.0, bounds.MinLat)
	require.Equal(t, 54.3, bounds.MaxLat)
	require.Equal(t, 18.6, bounds.MinLon)
	require.Equal(t, 19.9, bounds.MaxLon)
}

func TestStatsUniqueCells(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, []model.Measurement{
		testMeasurement(1000, 101),
		testMeasurement(2000, 101),
		testMeasurement(3000, 202),
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), stats.TotalMeasurements)
	require.Equal(t, uint64(2), stats.UniqueCells)
	require.Equal(t, int64(1000), stats.FirstMeasuredAt)
	require.Equal(t, int64(3000), stats.LastMeasuredAt)
}

func TestDeleteByID(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, []model.Measurement{
		testMeasurement(1000, 1),
		testMeasurement(2000, 2),
		testMeasurement(3000, 3),
	}))

	page, err := s.Page(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)

	removed, err := s.Delete(ctx, []int64{page[0].ID, page[2].ID})
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	first, err := s.First(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2000), first.MeasuredAt)
}

func TestDeleteBefore(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, []model.Measurement{
		testMeasurement(1000, 1),
		testMeasurement(2000, 2),
		testMeasurement(3000, 3),
	}))

	removed, err := s.DeleteBefore(ctx, 2000)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	first, err := s.First(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2000), first.MeasuredAt)
}

func TestQuickDumpBounded(t *testing.T) {
	s := New()
	ctx := context.Background()

	var batch []model.Measurement
	for i := 0; i < 20; i++ {
		batch = append(batch, testMeasurement(int64(1000+i), int64(i)))
	}
	require.NoError(t, s.Write(ctx, batch))

	dump, err := s.QuickDump(ctx)
	require.NoError(t, err)
	require.Contains(t, dump, "20 measurements")
	require.Contains(t, dump, "...")
}
