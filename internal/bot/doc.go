// Package bot implements the ingestion loop: on a fixed cadence it
// polls each tracked principal's venue activity feed, de-duplicates
// events already handled, rate-limits automated posts, and broadcasts
// a formatted message to every room the principal belongs to.
//
// Cycles never overlap: the loop runs a single goroutine and the
// ticker drops ticks while a cycle is still running. Within a cycle,
// principals are processed concurrently and in isolation: one
// principal's failure never aborts the others.
//
// Checkpoint semantics are deliberate and asymmetric: a post that is
// suppressed by the cooldown still advances the last-seen event id (so
// the event is never reconsidered) but leaves the last-post time
// untouched. Fast traders drop posts, they do not queue them.
package bot
