// Package handlers provides the HTTP API of the index server.
//
// Query endpoints live under /api/index and answer with JSON. Mutation
// endpoints let collaborators keep the index current after they change the
// filesystem: saving entries, recording a moved or uploaded path, and
// deleting entries. A full rebuild runs in the background and is rejected
// with 409 Conflict while another is running. GET /api/index/export streams
// every entry under a directory as newline-delimited JSON.
//
// Liveness, readiness, health, and version endpoints serve orchestration
// probes; [Handlers.MetricsHandler] exposes Prometheus metrics.
package handlers
