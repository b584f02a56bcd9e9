/*
Package export renders the measurement store into GPX or CSV documents.

# Pipeline

One export run is Exporter.Generate(ctx, formatter, device):

  - Formatter produces the document text (GPX track or CSV table).
  - Device is the sink: a file in the exports directory or an HTTP
    response stream.
  - The store is walked oldest-first in fixed pages, so memory use does
    not grow with store size.

An empty store short-circuits to no_data and the device is never opened.
Otherwise the run opens the device, writes a header built from the
first/last measurement and the geographic boundaries, streams every row,
and finishes with a footer and an explicit close. Progress listeners are
notified once up front, after every page, and once after the close.

# Segments

GPX tracks are split into segments wherever consecutive measurements are
more than the configured gap apart (30 minutes). A long pause in
collecting ends the line on the map instead of drawing a bogus straight
connection. CSV has no segment concept.

# Cancellation

Cancelling the context stops the run at the next page boundary. The
footer is still written and the device closed, so a cancelled export is
a valid, truncated document rather than a corrupt one.

# HTTP API

	GET  /v1/export?format=gpx|csv        stream a download
	POST /v1/export/files?format=gpx|csv  write a file under the exports dir

Downloads carry a Content-Disposition filename of the form
TowerCollector_measurements_<epoch-ms>.<ext>. Files written by the POST
endpoint are served statically under /exports/.

# Programmatic Usage

	exporter := export.NewExporter(store, reporter, logger)
	exporter.AddProgressListener(export.ListenerFunc(func(done, total int) {
	    log.Printf("%d/%d", done, total)
	}))

	device := export.NewFileDevice("exports/track.gpx")
	result := exporter.Generate(ctx, export.NewGPXFormatter(), device)
	if result.Status == export.StatusFailed {
	    log.Fatalf("%s: %s", result.Reason, result.Message)
	}
*/
package export
