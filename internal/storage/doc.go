// Package storage provides the key-value byte store the engine persists
// through.
//
// Two drivers are available:
//   - "file": one file per key under a directory, atomic replace on write
//   - "sqlite": a single-table SQLite database
//
// The engine treats persistence as best-effort: in-memory state is the
// source of truth for the running process, and callers are expected to
// swallow (but log) write failures.
package storage
