// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [Load] reads configuration with viper from an optional config file (any
// format viper understands, named by INDEX_CONFIG) and the environment.
// Environment variables override the file. [LoadConfig] wraps [Load] with
// the startup banner and directory checks.
//
//   - MEDIA_DIR: Directory to index (default: /media)
//   - DATABASE_DIR: Directory holding the index database (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - INDEX_ON_START: Build at startup when the index is not built (default: true)
//   - INDEX_INTERVAL: Periodic rebuild interval as Go duration, 0 disables (default: 0s)
//   - INDEX_MODE: Traversal mode, bfs or dfs (default: bfs)
//   - INDEX_STORAGE: Storage mode, immediate or batch (default: immediate)
//   - INDEX_WORKERS: Traversal workers, 0 derives from CPU and memory (default: 0)
//   - INDEX_BATCH_SIZE: Records per emitted batch (default: 100)
//   - INDEX_CHUNK_SIZE: Rows per transaction in batch storage mode (default: 1000)
//   - INDEX_CONCURRENCY: Concurrent stat calls per worker, 0 derives from CPU (default: 0)
//   - INDEX_SKIP_HIDDEN: Skip dot-prefixed entries (default: true)
//   - MIME_CACHE_SIZE: Extension to MIME cache capacity (default: 5000)
//   - DB_MAX_OPEN_CONNS, DB_BUSY_TIMEOUT: SQLite pool tuning (default: 25, 5s)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: Go memory limit, see package memory
//
// # Directory Setup
//
//   - Database directory: created if missing, must be writable
//   - Media directory: checked but never created
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogDatabaseInit]: Database file and initialization timing
//   - [LogIndexerInit]: Built state and rebuild interval
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
