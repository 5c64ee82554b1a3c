// Package database stores the file index in SQLite.
//
// One database file holds the index for one root directory. It contains:
//   - files: one row per indexed entry, keyed by its root-relative path
//   - metadata: when the last full build finished and which root it covered
//
// Connections use WAL mode so queries keep running while a build writes.
// Writers are serialized in-process and take SQLite's write lock at BEGIN.
//
// Name and path ordering use the NATSORT collation registered on every
// connection, so "file2" sorts before "file10".
package database
