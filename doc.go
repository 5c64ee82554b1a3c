// Package main provides the entry point for the File Index server.
//
// File Index keeps a SQLite index of one directory tree and serves queries
// over it: substring search, directory listings with cover images, media
// lookups, and random image selection. Builds walk the tree with a pool of
// workers and can run at startup, on a timer, or on request.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  2. Configuration Loading: Reads the optional INDEX_CONFIG file and the
//     environment, and validates directories
//  3. Observability: Registers Prometheus metrics and the filesystem observer
//  4. Index: Opens the database for MEDIA_DIR under DATABASE_DIR and starts
//     a build when the index is empty and INDEX_ON_START is set
//  5. HTTP Server Setup: Registers routes and middleware, then serves the API
//     on PORT and metrics on METRICS_PORT
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, drains requests, cancels
//     any build, and closes the database
//
// # Background Services
//
//   - Periodic rebuild every INDEX_INTERVAL, skipped while a build runs
//   - Metrics Collector: Updates index gauges every 30 seconds
//   - Memory Monitor: Pauses build workers under memory pressure
//
// See package startup for the full configuration reference and
// cmd/indexctl for offline maintenance.
package main
