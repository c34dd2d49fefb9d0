// Package server exposes the HTTP surface: wallet-style login, profile
// management, squad lifecycle, message history, leaderboards, and the
// WebSocket upgrade endpoint for room chat.
package server
