// Package ingest accepts SDK event batches: validation, per-pair grouping,
// idempotent persistence through the capture store, capacity limits, and the
// per-route rollups the dashboard reads.
package ingest
