// Package middleware provides HTTP middleware for the dataset studio server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with low-cardinality path normalization
//   - Response compression (gzip), bypassed for WebSocket upgrades
//   - Configurable filtering for health checks and image requests
package middleware
