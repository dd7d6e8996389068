// Package storage persists the subscriber dataset.
//
// Backends load the whole dataset at startup and replace it wholesale on
// Save. Supported drivers:
//   - "file": one JSON document, written via rename, guarded by a lock file
//   - "sqlite": one row per subscriber (modernc.org/sqlite, no cgo)
//   - "bolt": one key per subscriber in a bbolt bucket
//   - "memory" / "none": nothing survives a restart
package storage
