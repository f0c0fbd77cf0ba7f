// Package statcache persists derived image statistics keyed by content
// hash in a SQLite database, so stats survive across sessions and are
// never recomputed for unchanged files.
//
// The database uses WAL mode for concurrent read performance and
// initializes its schema automatically.
package statcache
