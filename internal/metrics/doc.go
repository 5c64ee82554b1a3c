// Package metrics provides Prometheus instrumentation for the file index service.
//
// All metrics are prefixed with "file_index_" and registered with the default
// registry through promauto.
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//
// ## Database Metrics
//   - DBQueryTotal / DBQueryDuration: per-operation query counts and latency
//   - DBTransactionDuration: write transaction duration by outcome
//   - DBRowsAffected: rows written or deleted per batch
//   - DBConnectionsOpen: open connections in the pool
//
// ## Indexer Metrics
//   - IndexerRunsTotal / IndexerFailuresTotal: full builds started and failed
//   - IndexerLastRunTimestamp / IndexerLastRunDuration: last successful build
//   - IndexerFilesProcessed / IndexerFoldersProcessed / IndexerErrors
//   - IndexerIsRunning: 1 while a build is in progress
//   - IndexerParallelWorkers: traversal workers used by the build
//   - IndexerMutationsTotal: incremental saves and deletes
//
// ## Memory Metrics
//   - MemoryUsageRatio / MemoryPaused / MemoryGCPauses: build backpressure
//
// ## Mime Cache Metrics
//   - MimeCacheHits / MimeCacheMisses / MimeCacheEvictions
//
// ## Filesystem Metrics
//
// Recorded through the filesystem.Observer implementation returned by
// [NewFilesystemObserver], which avoids an import cycle between the two
// packages.
//
// # Collector
//
// [Collector] periodically reads row counts from a [StatsProvider] and
// updates IndexFilesTotal and IndexDirectoriesTotal:
//
//	collector := metrics.NewCollector(engine, 1*time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Build throughput:
//
//	rate(file_index_indexer_files_processed_total[5m])
//
// Mime cache hit rate:
//
//	rate(file_index_mime_cache_hits_total[5m]) /
//	(rate(file_index_mime_cache_hits_total[5m]) + rate(file_index_mime_cache_misses_total[5m]))
package metrics
