/*
Package storage provides the pluggable storage abstraction for measurements.

# Storage Interface

The collector uses an interface-based design to support multiple backends:
  - memory: In-memory storage for testing and ephemeral workloads
  - badger: BadgerDB (LSM tree + Snappy compression) for persistent storage

All backends implement the Store interface and the same ordering contract:
rows are served in (measured_at, id) ascending order, so paging with a fixed
limit walks the full history oldest-first without gaps or overlaps. That
contract is what the export pipeline and the uploader lean on.

# Usage Example

	store, err := badger.New("./data", slog.Default())
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	err = store.Write(ctx, []model.Measurement{{
	    MCC: 260, MNC: 2, LAC: 58140, CellID: 42,
	    Latitude: 52.23, Longitude: 21.01,
	    MeasuredAt: time.Now().UnixMilli(),
	}})

	page, err := store.Page(ctx, 0, 80)
	stats, err := store.Stats(ctx)

# Deletion

Delete removes specific rows by ID (used after a successful upload);
DeleteBefore removes everything older than a cutoff (used by retention).
*/
package storage
