package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"fileindex/internal/database"
	"fileindex/internal/filesystem"
	"fileindex/internal/logging"
	"fileindex/internal/mediatypes"
	"fileindex/internal/memory"
	"fileindex/internal/metrics"
	"fileindex/internal/workers"
)

var (
	// ErrBuildInProgress is returned when a build is requested while one
	// is already running.
	ErrBuildInProgress = errors.New("index build already in progress")

	// ErrRootNotDirectory is returned when the build root is not a
	// directory.
	ErrRootNotDirectory = errors.New("index root is not a directory")
)

// StorageMode controls when traversal output reaches the database.
type StorageMode string

const (
	// StorageImmediate saves every batch as it arrives.
	StorageImmediate StorageMode = "immediate"
	// StorageBatch collects every worker's records and saves them in
	// chunks once all workers finish.
	StorageBatch StorageMode = "batch"
)

// ParseStorageMode accepts "immediate" or "batch" in any case. An empty
// string selects immediate.
func ParseStorageMode(s string) (StorageMode, error) {
	switch m := StorageMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return StorageImmediate, nil
	case StorageImmediate, StorageBatch:
		return m, nil
	}
	return "", fmt.Errorf("unknown storage mode %q (want immediate or batch)", s)
}

// DefaultChunkSize is the number of rows per transaction when a batch-mode
// build writes its collected records.
const DefaultChunkSize = 1000

// BuildOptions tunes full builds.
type BuildOptions struct {
	Mode    TraversalMode
	Storage StorageMode
	// Workers is the number of traversal workers. 0 derives it from CPU
	// and memory.
	Workers     int
	BatchSize   int
	ChunkSize   int
	Concurrency int
	SkipHidden  bool
}

// DefaultBuildOptions returns the options used when none are configured.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		Mode:       ModeBFS,
		Storage:    StorageImmediate,
		BatchSize:  DefaultBatchSize,
		ChunkSize:  DefaultChunkSize,
		SkipHidden: true,
	}
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.Mode == "" {
		o.Mode = ModeBFS
	}
	if o.Storage == "" {
		o.Storage = StorageImmediate
	}
	if o.BatchSize < 1 {
		o.BatchSize = DefaultBatchSize
	}
	if o.ChunkSize < 1 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Concurrency < 1 {
		o.Concurrency = workers.ForIO(64)
	}
	return o
}

// BuildResult summarizes a finished build.
type BuildResult struct {
	Processed   int64         `json:"processed"`
	Directories int64         `json:"directories"`
	Errors      int64         `json:"errors"`
	Saved       int64         `json:"saved"`
	Workers     int           `json:"workers"`
	Mode        TraversalMode `json:"mode"`
	Storage     StorageMode   `json:"storage"`
	Duration    time.Duration `json:"duration"`
}

// Builder runs full rebuilds of one database. Only one build runs at a
// time; a second request is rejected rather than queued.
type Builder struct {
	store    *database.Database
	detector *mediatypes.Detector
	monitor  *memory.Monitor
	opts     BuildOptions
	retry    filesystem.RetryConfig

	mu       sync.Mutex
	building bool
	lastErr  error

	progress progressTracker
}

// NewBuilder creates a builder writing to store. detector may carry a
// shared Mime Cache, which is purged at the start of every build. monitor
// may be nil.
func NewBuilder(store *database.Database, detector *mediatypes.Detector, monitor *memory.Monitor, opts BuildOptions) *Builder {
	if detector == nil {
		detector = mediatypes.NewDetector(mediatypes.NewMimeCache(0))
	}
	return &Builder{
		store:    store,
		detector: detector,
		monitor:  monitor,
		opts:     opts.withDefaults(),
		retry:    filesystem.DefaultRetryConfig(),
	}
}

// Options returns the effective build options.
func (b *Builder) Options() BuildOptions {
	return b.opts
}

// IsBuilding reports whether a build is running.
func (b *Builder) IsBuilding() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.building
}

// LastError returns the error of the most recent build, or nil if it
// succeeded.
func (b *Builder) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Progress returns the progress of the current or last build.
func (b *Builder) Progress() BuildProgress {
	return b.progress.Snapshot()
}

// tryStart moves the builder from idle to building.
func (b *Builder) tryStart() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.building {
		return false
	}
	b.building = true
	return true
}

func (b *Builder) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.building = false
	b.lastErr = err
}

// Build clears the index and rebuilds it from root. It returns
// ErrBuildInProgress if another build is running. A failed build may leave
// the index partially written and not marked built.
func (b *Builder) Build(ctx context.Context, root string) (*BuildResult, error) {
	if !b.tryStart() {
		return nil, ErrBuildInProgress
	}
	return b.run(ctx, root)
}

// TriggerBuild starts a build in the background. It returns
// ErrBuildInProgress immediately if a build is already running.
func (b *Builder) TriggerBuild(ctx context.Context, root string) error {
	if !b.tryStart() {
		return ErrBuildInProgress
	}
	go func() {
		if _, err := b.run(ctx, root); err != nil {
			logging.Error("Background index build failed: %v", err)
		}
	}()
	return nil
}

func (b *Builder) run(ctx context.Context, root string) (result *BuildResult, err error) {
	defer func() { b.finish(err) }()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	defer func() {
		if err != nil {
			metrics.IndexerFailuresTotal.Inc()
			logging.Error("Index build of %s failed: %v", root, err)
		}
	}()

	startTime := time.Now()
	root = filepath.Clean(root)

	info, err := filesystem.StatWithRetry(root, b.retry)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrRootNotDirectory)
	}

	logging.Info("Starting index build of %s (mode=%s, storage=%s)", root, b.opts.Mode, b.opts.Storage)

	b.progress.reset(startTime)
	if err := b.store.Clear(ctx); err != nil {
		return nil, err
	}
	if cache := b.detector.Cache(); cache != nil {
		cache.Purge()
	}

	total, err := CountFiles(ctx, b.opts.Mode, root, b.opts.SkipHidden)
	if err != nil {
		return nil, fmt.Errorf("counting pass: %w", err)
	}
	b.progress.setTotal(total)
	logging.Info("Counted %d files under %s", total, root)

	workerCount := workers.ForIndex(b.opts.Workers)
	metrics.IndexerParallelWorkers.Set(float64(workerCount))

	result = &BuildResult{
		Workers: workerCount,
		Mode:    b.opts.Mode,
		Storage: b.opts.Storage,
	}

	if err := b.traverse(ctx, root, workerCount, result); err != nil {
		return nil, err
	}

	if err := b.store.MarkBuilt(ctx, time.Now(), root); err != nil {
		return nil, err
	}
	if err := b.store.Checkpoint(ctx); err != nil {
		logging.Warn("WAL checkpoint after build failed: %v", err)
	}

	result.Duration = time.Since(startTime)

	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(result.Duration.Seconds())
	metrics.IndexerFilesProcessed.Add(float64(result.Processed))
	metrics.IndexerFoldersProcessed.Add(float64(result.Directories))

	logging.Info("Index build complete: %d files, %d folders, %d errors in %v (%d workers)",
		result.Processed, result.Directories, result.Errors, result.Duration, workerCount)

	return result, nil
}

// traverse runs one traversal per worker and persists their output
// according to the storage mode.
func (b *Builder) traverse(ctx context.Context, root string, workerCount int, result *BuildResult) error {
	var saved atomic.Int64

	workerPool := pool.NewWithResults[[]database.FileRecord]().
		WithErrors().
		WithContext(ctx).
		WithCancelOnError()

	for i := 0; i < workerCount; i++ {
		workerPool.Go(func(ctx context.Context) ([]database.FileRecord, error) {
			var collected []database.FileRecord

			emit := func(batch []database.FileRecord) error {
				b.progress.addBatch(batch)
				if b.opts.Storage == StorageBatch {
					collected = append(collected, batch...)
					return nil
				}
				n, err := b.store.SaveBatch(ctx, batch)
				saved.Add(int64(n))
				return err
			}

			t := NewTraversal(b.opts.Mode, TraversalConfig{
				Root:        root,
				WorkerIndex: i,
				WorkerCount: workerCount,
				BatchSize:   b.opts.BatchSize,
				Concurrency: b.opts.Concurrency,
				SkipHidden:  b.opts.SkipHidden,
				Detector:    b.detector,
				Monitor:     b.monitor,
				Retry:       b.retry,
				OnError: func(string, error) {
					b.progress.addError()
					metrics.IndexerErrors.Inc()
				},
			})

			stats, err := t.Run(ctx, emit)
			logging.Debug("Worker %d finished: %d files, %d folders, %d errors",
				i, stats.Files, stats.Directories, stats.Errors)
			if err != nil {
				return nil, fmt.Errorf("worker %d: %w", i, err)
			}
			return collected, nil
		})
	}

	batches, err := workerPool.Wait()
	if err != nil {
		return err
	}

	if b.opts.Storage == StorageBatch {
		var all []database.FileRecord
		for _, batch := range batches {
			all = append(all, batch...)
		}
		n, err := b.saveChunks(ctx, all)
		saved.Add(n)
		if err != nil {
			return err
		}
	}

	snap := b.progress.Snapshot()
	result.Processed = snap.Processed
	result.Directories = snap.Directories
	result.Errors = snap.Errors
	result.Saved = saved.Load()
	return nil
}

// saveChunks writes records in ChunkSize transactions.
func (b *Builder) saveChunks(ctx context.Context, records []database.FileRecord) (int64, error) {
	logging.Info("Saving %d records in chunks of %d", len(records), b.opts.ChunkSize)

	var saved int64
	for start := 0; start < len(records); start += b.opts.ChunkSize {
		end := min(start+b.opts.ChunkSize, len(records))
		n, err := b.store.SaveBatch(ctx, records[start:end])
		saved += int64(n)
		if err != nil {
			return saved, err
		}
	}
	return saved, nil
}
