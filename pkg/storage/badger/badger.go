// Package badger implements persistent measurement storage backed by BadgerDB.
//
// Keys are 16 bytes: big-endian measurement timestamp (epoch milliseconds)
// followed by the big-endian measurement ID. Lexicographic key order is
// therefore the canonical (measured_at, id) order, so every scan walks
// measurements oldest first without sorting.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/model"
	"github.com/hefei93/TowerCollector/pkg/storage"
)

const (
	keyLen = 16

	// idSequenceKey names the badger sequence used for measurement IDs.
	idSequenceKey = "!towercollector!id"

	// sequenceBandwidth is how many IDs are leased from the sequence at once.
	sequenceBandwidth = 128

	// ctxCheckEvery bounds how many items an iterator visits between
	// context cancellation checks.
	ctxCheckEvery = 1024
)

// Store is a badger-backed measurement store.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
	done   chan struct{}
}

// New opens (or creates) a persistent store in dir.
func New(dir string, logger *slog.Logger) (*Store, error) {
	opts := tunedOptions(badger.DefaultOptions(dir))
	return open(opts, logger)
}

// NewInMemory opens an ephemeral store. Used by tests.
func NewInMemory(logger *slog.Logger) (*Store, error) {
	opts := tunedOptions(badger.DefaultOptions("").WithInMemory(true))
	return open(opts, logger)
}

// tunedOptions keeps badger's footprint small. The defaults assume a
// server-class machine; this store often runs next to everything else
// on a single small box.
func tunedOptions(opts badger.Options) badger.Options {
	maxMemory := int64(config.DefaultMaxMemoryMB) << 20
	return opts.
		WithLogger(nil).
		WithCompression(options.Snappy).
		WithMemTableSize(maxMemory / 4).
		WithBlockCacheSize(maxMemory / 4).
		WithIndexCacheSize(maxMemory / 8).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithNumCompactors(2).
		WithValueLogFileSize(64 << 20)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}

	seq, err := db.GetSequence([]byte(idSequenceKey), sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("badger: id sequence: %w", err)
	}

	s := &Store{
		db:     db,
		seq:    seq,
		logger: logger,
		done:   make(chan struct{}),
	}
	if !opts.InMemory {
		go s.gcLoop()
	}
	return s, nil
}

// gcLoop reclaims value log space in the background until Close.
func (s *Store) gcLoop() {
	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			// One GC call rewrites at most one file, loop until there
			// is nothing left to rewrite.
			for {
				if err := s.db.RunValueLogGC(config.BadgerGCRatio); err != nil {
					break
				}
				s.logger.Debug("badger value log gc rewrote a file")
			}
		}
	}
}

// Write stores measurements and assigns their IDs.
func (s *Store) Write(ctx context.Context, measurements []model.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}
	if s.db.IsClosed() {
		return storage.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for i := range measurements {
			id, err := s.seq.Next()
			if err != nil {
				return fmt.Errorf("badger: next id: %w", err)
			}
			measurements[i].ID = int64(id) + 1

			value, err := json.Marshal(measurements[i])
			if err != nil {
				return fmt.Errorf("badger: encode measurement: %w", err)
			}
			key := makeKey(measurements[i].MeasuredAt, measurements[i].ID)
			if err := txn.Set(key, value); err != nil {
				return fmt.Errorf("badger: set: %w", err)
			}
		}
		return nil
	})
}

// Count returns the number of stored measurements.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.db.IsClosed() {
		return 0, storage.ErrClosed
	}

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if !isMeasurementKey(it.Item().Key()) {
				continue
			}
			count++
			if count%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// First returns the oldest measurement, nil when empty.
func (s *Store) First(ctx context.Context) (*model.Measurement, error) {
	return s.edge(ctx, false)
}

// Last returns the newest measurement, nil when empty.
func (s *Store) Last(ctx context.Context) (*model.Measurement, error) {
	return s.edge(ctx, true)
}

func (s *Store) edge(ctx context.Context, reverse bool) (*model.Measurement, error) {
	if s.db.IsClosed() {
		return nil, storage.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var found *model.Measurement
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.PrefetchSize = 1
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !isMeasurementKey(item.Key()) {
				continue
			}
			m, err := decodeItem(item)
			if err != nil {
				return err
			}
			found = m
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Page returns up to limit measurements starting at offset in canonical order.
func (s *Store) Page(ctx context.Context, offset, limit int) ([]model.Measurement, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("badger: invalid page offset=%d limit=%d", offset, limit)
	}
	if s.db.IsClosed() {
		return nil, storage.ErrClosed
	}
	if limit == 0 {
		return nil, nil
	}

	var page []model.Measurement
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		seen := 0
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !isMeasurementKey(item.Key()) {
				continue
			}
			if seen%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if seen < offset {
				seen++
				continue
			}
			seen++

			m, err := decodeItem(item)
			if err != nil {
				return err
			}
			page = append(page, *m)
			if len(page) == limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Boundaries returns the geographic extent of all measurements.
func (s *Store) Boundaries(ctx context.Context) (model.Boundaries, error) {
	var bounds model.Boundaries
	first := true
	err := s.scan(ctx, func(m *model.Measurement) error {
		if first {
			bounds = model.Boundaries{
				MinLat: m.Latitude, MaxLat: m.Latitude,
				MinLon: m.Longitude, MaxLon: m.Longitude,
			}
			first = false
			return nil
		}
		bounds.Extend(m.Latitude, m.Longitude)
		return nil
	})
	if err != nil {
		return model.Boundaries{}, err
	}
	return bounds, nil
}

// Stats returns aggregate statistics. Unique cells are counted by a
// 64-bit hash of the cell identity, collisions are acceptable for a
// diagnostic figure.
func (s *Store) Stats(ctx context.Context) (*model.Statistics, error) {
	stats := &model.Statistics{}
	cells := make(map[uint64]struct{})
	first := true

	err := s.scan(ctx, func(m *model.Measurement) error {
		stats.TotalMeasurements++
		cells[xxhash.Sum64String(m.CellKey())] = struct{}{}
		if first {
			stats.FirstMeasuredAt = m.MeasuredAt
			first = false
		}
		stats.LastMeasuredAt = m.MeasuredAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.UniqueCells = uint64(len(cells))
	lsm, vlog := s.db.Size()
	stats.SizeBytes = uint64(lsm + vlog)
	return stats, nil
}

// QuickDump renders a bounded snapshot for diagnostic reports.
func (s *Store) QuickDump(ctx context.Context) (string, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "badger store: %d measurements\n", count)

	const edge = 3
	head, err := s.Page(ctx, 0, edge)
	if err != nil {
		return "", err
	}
	for _, m := range head {
		sb.WriteString(m.String())
		sb.WriteByte('\n')
	}
	if count > 2*edge {
		sb.WriteString("...\n")
	}
	if count > edge {
		tailOffset := count - edge
		if tailOffset < edge {
			tailOffset = edge
		}
		tail, err := s.Page(ctx, tailOffset, edge)
		if err != nil {
			return "", err
		}
		for _, m := range tail {
			sb.WriteString(m.String())
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// Delete removes measurements by ID. The ID lives in the key suffix, so
// this walks the keyspace rather than doing point lookups.
func (s *Store) Delete(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	keys, err := s.collectKeys(ctx, func(measuredAt, id int64) bool {
		_, ok := drop[id]
		return ok
	})
	if err != nil {
		return 0, err
	}
	if err := s.deleteKeys(keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// DeleteBefore removes measurements measured strictly before the cutoff.
func (s *Store) DeleteBefore(ctx context.Context, measuredBefore int64) (int, error) {
	keys, err := s.collectKeys(ctx, func(measuredAt, id int64) bool {
		return measuredAt < measuredBefore
	})
	if err != nil {
		return 0, err
	}
	if err := s.deleteKeys(keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Close releases the ID sequence and closes the database. Safe to call once.
func (s *Store) Close() error {
	close(s.done)
	if err := s.seq.Release(); err != nil {
		s.logger.Warn("badger: releasing id sequence", "error", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("badger: close: %w", err)
	}
	return nil
}

// scan visits every measurement in canonical order.
func (s *Store) scan(ctx context.Context, visit func(*model.Measurement) error) error {
	if s.db.IsClosed() {
		return storage.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seen := 0
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !isMeasurementKey(item.Key()) {
				continue
			}
			seen++
			if seen%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			m, err := decodeItem(item)
			if err != nil {
				return err
			}
			if err := visit(m); err != nil {
				return err
			}
		}
		return nil
	})
}

// collectKeys returns copies of every measurement key the predicate accepts.
func (s *Store) collectKeys(ctx context.Context, accept func(measuredAt, id int64) bool) ([][]byte, error) {
	if s.db.IsClosed() {
		return nil, storage.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		seen := 0
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !isMeasurementKey(item.Key()) {
				continue
			}
			seen++
			if seen%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			measuredAt, id := splitKey(item.Key())
			if accept(measuredAt, id) {
				keys = append(keys, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) deleteKeys(keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("badger: delete: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger: flush deletes: %w", err)
	}
	return nil
}

func decodeItem(item *badger.Item) (*model.Measurement, error) {
	var m model.Measurement
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &m)
	})
	if err != nil {
		return nil, fmt.Errorf("badger: decode measurement: %w", err)
	}
	return &m, nil
}

func makeKey(measuredAt, id int64) []byte {
	key := make([]byte, keyLen)
	binary.BigEndian.PutUint64(key[0:8], uint64(measuredAt))
	binary.BigEndian.PutUint64(key[8:16], uint64(id))
	return key
}

func splitKey(key []byte) (measuredAt, id int64) {
	return int64(binary.BigEndian.Uint64(key[0:8])), int64(binary.BigEndian.Uint64(key[8:16]))
}

// isMeasurementKey filters out badger-internal keys such as the ID
// sequence counter.
func isMeasurementKey(key []byte) bool {
	return len(key) == keyLen
}
