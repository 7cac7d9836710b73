// Package sqlitestore implements store.Store on SQLite via GORM. It is
// a single-process backend: leases and compare-and-set commits are
// serialized through guarded UPDATEs checked with RowsAffected, which
// SQLite's writer lock makes atomic. Use the bun/PostgreSQL backend for
// multi-process deployments.
package sqlitestore
