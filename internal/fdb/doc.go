// Package fdb is the row engine of an open-hashing table file.
//
// # Overview
//
// A [Table] keeps its rows in a bucket array. Each slot holds the head of a
// singly-linked chain of rows whose keys map to that slot. The placement
// rules are shared with every other reader of the file:
//
//   - A key is turned into a 32-bit integer by [DeriveKey]. Strings go through
//     [Hash], a bit-exact SuperFastHash.
//   - The slot of a key is the unsigned key modulo the bucket count
//     ([SlotIndex]).
//   - Collisions are appended to the tail of the chain.
//
// [Table.CreateWithKey] places a row using the bucket count at the time of the
// insertion. Only [Table.Resize] redistributes rows, so callers resize after
// bulk changes. [Table.Recalculate] keeps the legacy hint of 1 (single
// bucket).
//
// # Rows
//
// Rows live in an arena addressed by index; chain links and slot heads are
// indexes into it. A [Column] is a view of one row. Removing a row only
// unlinks it.
//
// # Concurrency
//
// Nothing here is safe for concurrent use. Serialize access per table.
package fdb
