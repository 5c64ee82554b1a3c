// Package middleware provides HTTP middleware for the index server.
//
// It includes:
//   - Structured access logging, optionally skipping health probes
//   - Prometheus request metrics labelled by route template
package middleware
