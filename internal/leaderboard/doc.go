// Package leaderboard computes squad PnL leaderboards from venue
// position data. Results are cached per squad with a short TTL and
// concurrent requests for the same squad are collapsed into a single
// computation, so a busy room hits the venue API at most once per TTL
// window.
//
// The computation degrades per member: a member whose venue calls fail
// (or who has no linked venue address) still appears on the board with
// zero PnL and no top position rather than failing the whole request.
package leaderboard
