// Package store persists traces as single portable SQLite files.
//
// A trace file holds one session: a meta row (format version, session id,
// creation time, tags, finalized flag) and an append-only sequence of
// interaction records ordered by seq. Record mode appends through an open
// Store; replay mode loads the whole file into an immutable trace.Trace at
// open and never touches the file again.
//
// The format is self-describing: the format version lives both in the
// SQLite user_version pragma and the meta row, and readers select columns
// by name so that columns added by future versions are ignored.
package store
