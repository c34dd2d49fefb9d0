// Package hub implements the Room Registry & Broadcaster: it tracks
// which connected sessions are listening to which squad room and fans
// persisted messages out to them.
//
// Ordering is load-bearing: each room's lock is held across
// persist-then-deliver, so the order of messages in the durable store
// always equals the delivery order seen by every listening session. If
// persistence fails, nothing is delivered.
//
// The hub owns only the transient session-to-room mapping; sessions
// that are not connected at delivery time miss the live event and see
// it later via history fetch.
package hub
