// Package journal records pruning trials in SQLite.
//
// Every pass run gets a row in runs, keyed by a UUIDv7 run id, and every
// trial gets a row in trials stamped with a logical sequence number from a
// per-run Clock. Reads are ordered by seq so a journal replays in the order
// the trials happened.
//
// The journal is an observer. Write failures are reported to the caller,
// which logs them; they never change what the pass does.
package journal
