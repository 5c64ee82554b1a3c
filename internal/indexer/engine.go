package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fileindex/internal/database"
	"fileindex/internal/filesystem"
	"fileindex/internal/logging"
	"fileindex/internal/mediatypes"
	"fileindex/internal/memory"
	"fileindex/internal/metrics"
)

// Config describes an Engine.
type Config struct {
	// Root is the absolute directory being indexed.
	Root string
	// DataDir holds the database file, named after a hash of Root.
	DataDir string

	Build         BuildOptions
	MimeCacheSize int
	Database      *database.Options
	// Monitor, when set, applies memory backpressure to builds.
	Monitor *memory.Monitor
}

// Engine is the entry point for collaborators: it owns the store for one
// root and the builder that fills it. Query and mutation methods never
// return storage errors; failures are logged and degrade to empty results
// or false.
type Engine struct {
	root      string
	db        *database.Database
	builder   *Builder
	detector  *mediatypes.Detector
	retry     filesystem.RetryConfig
	startTime time.Time

	stopChan chan struct{}
}

// New opens the database for cfg.Root and prepares a builder.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Root == "" {
		return nil, errors.New("index root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := database.New(ctx, database.DatabasePathForRoot(cfg.DataDir, root), cfg.Database)
	if err != nil {
		return nil, err
	}

	detector := mediatypes.NewDetector(mediatypes.NewMimeCache(cfg.MimeCacheSize))

	return &Engine{
		root:      root,
		db:        db,
		builder:   NewBuilder(db, detector, cfg.Monitor, cfg.Build),
		detector:  detector,
		retry:     filesystem.DefaultRetryConfig(),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}, nil
}

// Root returns the indexed root directory.
func (e *Engine) Root() string {
	return e.root
}

// Database returns the underlying store.
func (e *Engine) Database() *database.Database {
	return e.db
}

// Builder returns the engine's builder.
func (e *Engine) Builder() *Builder {
	return e.builder
}

// Initialize ensures the schema exists. It is safe to call repeatedly.
func (e *Engine) Initialize(ctx context.Context) error {
	return e.db.Initialize(ctx)
}

// Close stops background rebuilds and closes the database.
func (e *Engine) Close() error {
	select {
	case <-e.stopChan:
	default:
		close(e.stopChan)
	}
	return e.db.Close()
}

// IsBuilt reports whether the store holds a completed build of this root.
func (e *Engine) IsBuilt(ctx context.Context) bool {
	built, err := e.db.IsBuilt(ctx, e.root)
	if err != nil {
		logging.Error("Failed to read build state: %v", err)
		return false
	}
	return built
}

// Build runs a full rebuild and waits for it.
func (e *Engine) Build(ctx context.Context) (*BuildResult, error) {
	return e.builder.Build(ctx, e.root)
}

// TriggerBuild starts a full rebuild in the background.
func (e *Engine) TriggerBuild(ctx context.Context) error {
	return e.builder.TriggerBuild(ctx, e.root)
}

// StartPeriodic rebuilds the index every interval until ctx ends or the
// engine is closed. A tick that lands during a running build is skipped.
func (e *Engine) StartPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logging.Debug("Periodic rebuild triggered")
				if _, err := e.Build(ctx); err != nil && !errors.Is(err, ErrBuildInProgress) {
					logging.Error("Periodic rebuild failed: %v", err)
				}
			case <-ctx.Done():
				return
			case <-e.stopChan:
				return
			}
		}
	}()
}

// Stats describes the index and any running build.
type Stats struct {
	FileCount   int           `json:"fileCount"`
	Directories int           `json:"directoryCount"`
	LastBuilt   *time.Time    `json:"lastBuilt"`
	IsBuilding  bool          `json:"isBuilding"`
	Progress    BuildProgress `json:"progress"`
}

// Stats returns the current counts and build state. It is safe to call
// during a build.
func (e *Engine) Stats(ctx context.Context) Stats {
	stats := Stats{
		IsBuilding: e.builder.IsBuilding(),
		Progress:   e.builder.Progress(),
	}

	counts, err := e.db.CountFiles(ctx)
	if err != nil {
		logging.Error("Failed to count index rows: %v", err)
	}
	stats.FileCount = counts.Files
	stats.Directories = counts.Directories

	if last, err := e.db.LastBuilt(ctx); err != nil {
		logging.Error("Failed to read last build time: %v", err)
	} else if !last.IsZero() {
		stats.LastBuilt = &last
	}
	return stats
}

// IndexCounts reports row counts for the metrics collector.
func (e *Engine) IndexCounts(ctx context.Context) (metrics.Stats, error) {
	counts, err := e.db.CountFiles(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{Files: counts.Files, Directories: counts.Directories}, nil
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready       bool      `json:"ready"`
	Built       bool      `json:"built"`
	Building    bool      `json:"building"`
	StartTime   time.Time `json:"startTime"`
	Uptime      string    `json:"uptime"`
	LastBuilt   time.Time `json:"lastBuilt,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	Files       int       `json:"files"`
	Directories int       `json:"directories"`
}

// Health reports whether the store answers queries along with build state.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Building:  e.builder.IsBuilding(),
		StartTime: e.startTime,
		Uptime:    time.Since(e.startTime).Round(time.Second).String(),
	}

	counts, err := e.db.CountFiles(ctx)
	if err != nil {
		logging.Warn("Health check query failed: %v", err)
		return status
	}
	status.Ready = true
	status.Files = counts.Files
	status.Directories = counts.Directories
	status.Built = e.IsBuilt(ctx)

	if last, err := e.db.LastBuilt(ctx); err == nil {
		status.LastBuilt = last
	}
	if err := e.builder.LastError(); err != nil {
		status.LastError = err.Error()
	}
	return status
}

// Search finds entries by name. Errors yield an empty result.
func (e *Engine) Search(ctx context.Context, opts database.SearchOptions) *database.SearchResult {
	res, err := e.db.Search(ctx, opts)
	if err != nil {
		logging.Error("Search %q in %q failed: %v", opts.Query, opts.Directory, err)
		return &database.SearchResult{Results: []database.FileRecord{}}
	}
	return res
}

// DirectoryChildren lists one directory level. Errors yield an empty list.
func (e *Engine) DirectoryChildren(ctx context.Context, opts database.ListOptions) *database.FileList {
	res, err := e.db.DirectoryChildren(ctx, opts)
	if err != nil {
		logging.Error("Listing %q failed: %v", opts.Directory, err)
		return &database.FileList{Files: []database.FileRecord{}}
	}
	return res
}

// FindMedia lists files of one media class. Errors, including an unknown
// media type, yield an empty list.
func (e *Engine) FindMedia(ctx context.Context, opts database.MediaOptions) *database.FileList {
	res, err := e.db.FindMedia(ctx, opts)
	if err != nil {
		logging.Error("Media lookup %q in %q failed: %v", opts.MediaType, opts.Directory, err)
		return &database.FileList{Files: []database.FileRecord{}}
	}
	return res
}

// RandomImage picks an image under dir, or nil if there is none.
func (e *Engine) RandomImage(ctx context.Context, dir string) *database.FileRecord {
	rec, err := e.db.RandomImage(ctx, dir)
	if err != nil {
		logging.Error("Random image in %q failed: %v", dir, err)
		return nil
	}
	return rec
}

func recordMutation(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IndexerMutationsTotal.WithLabelValues(op, status).Inc()
}

// SaveBatch upserts entries and returns how many were written.
func (e *Engine) SaveBatch(ctx context.Context, entries []database.FileRecord) int {
	n, err := e.db.SaveBatch(ctx, entries)
	recordMutation("save_batch", err)
	if err != nil {
		logging.Error("Saving %d index entries failed: %v", len(entries), err)
		return 0
	}
	return n
}

// fullPath maps a stored path onto the filesystem.
func (e *Engine) fullPath(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

// Delete removes path from the index and reports whether any row went.
// Directories lose every descendant row as well. A path is treated as a
// directory when it ends in "/", when it is a directory on disk, or when
// its stored row says so.
func (e *Engine) Delete(ctx context.Context, path string) bool {
	rel := database.NormalizePath(path)
	if rel == "" {
		logging.Warn("Refusing to delete the index root")
		recordMutation("delete", database.ErrEmptyPath)
		return false
	}

	recursive := strings.HasSuffix(path, "/")
	if !recursive {
		if info, err := filesystem.LstatWithRetry(e.fullPath(rel), e.retry); err == nil {
			recursive = info.IsDir()
		}
	}
	if !recursive {
		if rec, err := e.db.GetFile(ctx, rel); err == nil {
			recursive = rec.IsDirectory
		}
	}

	n, err := e.db.DeletePath(ctx, rel, recursive)
	recordMutation("delete", err)
	if err != nil {
		logging.Error("Deleting %q from index failed: %v", rel, err)
		return false
	}
	logging.Debug("Removed %d index rows for %q", n, rel)
	return n > 0
}

// RecordPath stats the live entry at relPath and upserts it. For a real
// directory the whole subtree is indexed too, which is what a rename or
// move of a directory needs after the old path was deleted.
func (e *Engine) RecordPath(ctx context.Context, relPath string) (err error) {
	defer func() { recordMutation("record_path", err) }()

	rel := database.NormalizePath(relPath)
	if rel == "" {
		return database.ErrEmptyPath
	}
	full := e.fullPath(rel)

	info, err := filesystem.LstatWithRetry(full, e.retry)
	if err != nil {
		return fmt.Errorf("stat %s: %w", rel, err)
	}

	rec := database.FileRecord{
		Name:    info.Name(),
		Path:    rel,
		ModTime: info.ModTime(),
	}
	descend := false
	switch {
	case info.IsDir():
		rec.IsDirectory = true
		descend = true
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := filesystem.StatWithRetry(full, e.retry)
		if err != nil {
			return fmt.Errorf("stat %s: %w", rel, err)
		}
		rec.ModTime = target.ModTime()
		rec.IsDirectory = target.IsDir()
		if !rec.IsDirectory {
			rec.Size = target.Size()
			rec.MimeType = e.detector.Detect(full)
		}
	default:
		rec.Size = info.Size()
		rec.MimeType = e.detector.Detect(full)
	}

	if _, err := e.db.SaveBatch(ctx, []database.FileRecord{rec}); err != nil {
		return err
	}
	if descend {
		if _, err := e.Reindex(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

// Reindex walks the directory at relPath and upserts every entry beneath
// it. The directory's own row is left alone. Returns the number of rows
// written.
func (e *Engine) Reindex(ctx context.Context, relPath string) (saved int, err error) {
	defer func() { recordMutation("reindex", err) }()

	opts := e.builder.Options()
	t := NewTraversal(opts.Mode, TraversalConfig{
		Root:        e.root,
		Start:       e.fullPath(database.NormalizePath(relPath)),
		BatchSize:   opts.BatchSize,
		Concurrency: opts.Concurrency,
		SkipHidden:  opts.SkipHidden,
		Detector:    e.detector,
		Retry:       e.retry,
	})

	_, err = t.Run(ctx, func(batch []database.FileRecord) error {
		n, err := e.db.SaveBatch(ctx, batch)
		saved += n
		return err
	})
	if err != nil {
		return saved, fmt.Errorf("reindex %s: %w", relPath, err)
	}
	return saved, nil
}

// Export calls fn for every stored entry under dir in path order.
func (e *Engine) Export(ctx context.Context, dir string, fn func(*database.FileRecord) error) error {
	return e.db.EachFile(ctx, dir, fn)
}

// GetFile returns the stored row for path, or nil if there is none.
func (e *Engine) GetFile(ctx context.Context, path string) *database.FileRecord {
	rec, err := e.db.GetFile(ctx, path)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Error("Lookup of %q failed: %v", path, err)
		}
		return nil
	}
	return rec
}
