// Package stats merges the entries and per-label scores of every configured
// source into the single document served to clients.
//
// A Source reports a set of entry names and a label -> (name -> value) map.
// FieldColumns turns any cache.FieldSource into a Source by mapping its fields
// to column labels, ScoreboardSource reads objective scores, and Live resolves
// placeholder expressions on demand.
package stats
