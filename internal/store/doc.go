// Package store implements the Durable Store over Postgres: CRUD for
// principals, squads, memberships, messages, and the ingestion bot's
// checkpoint state, plus the atomic message-retention operation.
//
// The store is authoritative for all persisted records. Transient
// state (live sessions, leaderboard snapshots) lives in the hub and
// leaderboard packages and is never written here.
package store
