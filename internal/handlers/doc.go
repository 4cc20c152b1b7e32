// Package handlers implements the HTTP API: dataset browsing and search,
// caption and tag editing with per-session undo, bulk operations,
// thumbnails, change notifications over WebSocket, and health endpoints.
package handlers
