// Package model defines the domain types shared across components:
// principals, squads, messages, bot checkpoints, and the feed/derived
// types produced by the venue adapters.
package model
