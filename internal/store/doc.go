// Package store is the compiled-artifact cache.
//
// Compilation is deterministic, so a generated program is fully identified
// by the definition's content hash plus the compiler version that produced
// it. The cache maps that pair to program text in a local SQLite database;
// recompiling an unchanged definition becomes a single indexed read.
//
// The definition id is stored alongside each artifact for purging, but it
// is never part of the cache key: renaming or re-identifying a definition
// must not invalidate its artifact.
package store
