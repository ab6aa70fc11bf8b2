// Package logstore implements a durable, append-only key/value store.
//
// Every Put and Delete is appended to a single log file as one text line and
// flushed to stable storage before the call returns. The in-memory map is never
// persisted on its own: Open rebuilds it by replaying the log from the first
// line, so the map is always reproducible from the log alone.
//
// Log lines have the form
//
//	PUT <key> <value>
//	DELETE <key>
//
// with keys and values escaped so that backslash, space and newline inside them
// cannot be confused with delimiters (see Escape).
//
// To bound growth the store can compact itself: the log is rewritten as the
// minimal set of PUT records for the current map and atomically renamed over the
// old log. Compaction keeps the single log-structured format, so a compacted log
// replays exactly like an uncompacted one.
//
// A Store assumes it is the only writer of its log file. Nothing prevents two
// processes from opening the same path, and doing so corrupts the log.
package logstore
