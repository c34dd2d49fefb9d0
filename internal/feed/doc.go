// Package feed implements the Activity Feed Client: a stateless HTTP
// adapter over the venue's public data API.
//
// The client exposes:
//   - recent trade/redeem activity per venue address (ingestion loop)
//   - open/closed positions and total portfolio value (leaderboard)
//
// All calls take a context; callers bound them with their own timeouts.
// Transient failures (5xx, 429) are retried with jittered exponential
// backoff.
package feed
