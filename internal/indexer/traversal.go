package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"fileindex/internal/database"
	"fileindex/internal/filesystem"
	"fileindex/internal/logging"
	"fileindex/internal/mediatypes"
	"fileindex/internal/memory"
	"fileindex/internal/workers"
)

// TraversalMode selects the order in which a traversal visits directories.
type TraversalMode string

const (
	ModeBFS TraversalMode = "bfs"
	ModeDFS TraversalMode = "dfs"
)

// ParseTraversalMode accepts "bfs" or "dfs" in any case. An empty string
// selects BFS.
func ParseTraversalMode(s string) (TraversalMode, error) {
	switch m := TraversalMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeBFS, nil
	case ModeBFS, ModeDFS:
		return m, nil
	}
	return "", fmt.Errorf("unknown traversal mode %q (want bfs or dfs)", s)
}

// DefaultBatchSize is the number of records a traversal buffers before
// handing them to its emit callback.
const DefaultBatchSize = 100

// EmitFunc receives a batch of records owned by one traversal. The batch is
// not reused after the call returns. A non-nil error stops the traversal.
type EmitFunc func(batch []database.FileRecord) error

// TraversalConfig binds a traversal to a root and a partition.
type TraversalConfig struct {
	// Root is the indexed root. Record paths are relative to it.
	Root string
	// Start is where the walk begins; it defaults to Root. Start itself is
	// never emitted.
	Start string

	WorkerIndex int
	WorkerCount int

	BatchSize int
	// Concurrency bounds in-flight stat calls for this traversal.
	Concurrency int
	SkipHidden  bool

	Detector *mediatypes.Detector
	// Monitor, when set, pauses the walk under memory pressure.
	Monitor *memory.Monitor
	Retry   filesystem.RetryConfig

	// OnError is called for every per-entry failure this traversal counts.
	OnError func(path string, err error)
}

// TraversalStats summarizes one finished traversal.
type TraversalStats struct {
	Files       int64
	Directories int64
	Errors      int64
}

// Traversal walks the tree under its root and emits the entries its
// partition owns. Every traversal reads every directory; ownership of an
// entry is decided by hashing its full path, so parallel traversals never
// need to coordinate.
type Traversal interface {
	Run(ctx context.Context, emit EmitFunc) (TraversalStats, error)
}

// NewTraversal returns the traversal for mode.
func NewTraversal(mode TraversalMode, cfg TraversalConfig) Traversal {
	w := newWalker(cfg)
	if mode == ModeDFS {
		return &dfsTraversal{walker: w}
	}
	return &bfsTraversal{walker: w}
}

// owner returns the partition that owns fullPath.
func owner(fullPath string, workerCount int) int {
	if workerCount <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(fullPath) % uint64(workerCount))
}

// walker holds the state shared by both traversal orders.
type walker struct {
	cfg     TraversalConfig
	limiter *workers.Limiter

	buf  []database.FileRecord
	emit EmitFunc

	files  int64
	dirs   int64
	errors atomic.Int64
}

func newWalker(cfg TraversalConfig) *walker {
	cfg.Root = filepath.Clean(cfg.Root)
	if cfg.Start == "" {
		cfg.Start = cfg.Root
	}
	cfg.Start = filepath.Clean(cfg.Start)
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = workers.ForIO(64)
	}
	if cfg.Detector == nil {
		cfg.Detector = mediatypes.NewDetector(nil)
	}
	if cfg.Retry == (filesystem.RetryConfig{}) {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}

	return &walker{
		cfg:     cfg,
		limiter: workers.NewLimiter(cfg.Concurrency),
	}
}

func (w *walker) owns(fullPath string) bool {
	return owner(fullPath, w.cfg.WorkerCount) == w.cfg.WorkerIndex
}

func (w *walker) start(emit EmitFunc) {
	w.emit = emit
	w.buf = make([]database.FileRecord, 0, w.cfg.BatchSize)
}

func (w *walker) stats() TraversalStats {
	return TraversalStats{
		Files:       w.files,
		Directories: w.dirs,
		Errors:      w.errors.Load(),
	}
}

func (w *walker) fail(path string, err error) {
	w.errors.Add(1)
	if w.cfg.OnError != nil {
		w.cfg.OnError(path, err)
	}
}

// relPath converts a full path into the stored form.
func (w *walker) relPath(fullPath string) string {
	rel, err := filepath.Rel(w.cfg.Root, fullPath)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}

func (w *walker) hidden(name string) bool {
	return w.cfg.SkipHidden && strings.HasPrefix(name, ".")
}

// add buffers rec and flushes a full batch.
func (w *walker) add(rec database.FileRecord) error {
	if rec.IsDirectory {
		w.dirs++
	} else {
		w.files++
	}
	w.buf = append(w.buf, rec)
	if len(w.buf) >= w.cfg.BatchSize {
		return w.flush()
	}
	return nil
}

func (w *walker) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	batch := w.buf
	w.buf = make([]database.FileRecord, 0, w.cfg.BatchSize)
	return w.emit(batch)
}

// readDir lists dir, splitting real subdirectories from everything else.
// Only the partition that owns dir counts a failure, so an unreadable
// directory is one error however many workers run.
func (w *walker) readDir(ctx context.Context, dir string) (files, subdirs []os.DirEntry, ok bool) {
	if err := w.cfg.Monitor.Wait(ctx); err != nil {
		return nil, nil, false
	}

	entries, err := filesystem.ReadDirWithRetry(dir, w.cfg.Retry)
	if err != nil {
		if w.owns(dir) {
			logging.Warn("Error reading directory %s: %v", dir, err)
			w.fail(dir, err)
		}
		return nil, nil, false
	}

	for _, e := range entries {
		if w.hidden(e.Name()) {
			continue
		}
		if e.IsDir() {
			subdirs = append(subdirs, e)
		} else {
			files = append(files, e)
		}
	}
	return files, subdirs, true
}

// dirRecord builds the record for a directory the walk will descend into.
func (w *walker) dirRecord(fullPath string) (database.FileRecord, bool) {
	info, err := filesystem.LstatWithRetry(fullPath, w.cfg.Retry)
	if err != nil {
		logging.Warn("Error getting info for %s: %v", fullPath, err)
		w.fail(fullPath, err)
		return database.FileRecord{}, false
	}
	return database.FileRecord{
		Name:        info.Name(),
		Path:        w.relPath(fullPath),
		ModTime:     info.ModTime(),
		MimeType:    mediatypes.DirectoryMimeType,
		IsDirectory: true,
	}, true
}

// fileRecord stats one non-directory entry. Symlinks are followed for size
// and type; a symlink to a directory is recorded as a directory but the
// walk never descends into it.
func (w *walker) fileRecord(fullPath string) (database.FileRecord, bool) {
	info, err := filesystem.StatWithRetry(fullPath, w.cfg.Retry)
	if err != nil {
		logging.Warn("Error getting info for %s: %v", fullPath, err)
		w.fail(fullPath, err)
		return database.FileRecord{}, false
	}

	rec := database.FileRecord{
		Name:    filepath.Base(fullPath),
		Path:    w.relPath(fullPath),
		ModTime: info.ModTime(),
	}
	if info.IsDir() {
		rec.IsDirectory = true
		rec.MimeType = mediatypes.DirectoryMimeType
		return rec, true
	}
	rec.Size = info.Size()
	rec.MimeType = w.cfg.Detector.Detect(fullPath)
	return rec, true
}

// processFiles stats the owned entries of one directory through the
// limiter and adds them in listing order.
func (w *walker) processFiles(ctx context.Context, dir string, entries []os.DirEntry) error {
	type slot struct {
		rec database.FileRecord
		ok  bool
	}
	results := make([]slot, len(entries))

	var submitErr error
	for i, e := range entries {
		fullPath := filepath.Join(dir, e.Name())
		if !w.owns(fullPath) {
			continue
		}
		if submitErr = w.limiter.Go(ctx, func() {
			results[i].rec, results[i].ok = w.fileRecord(fullPath)
		}); submitErr != nil {
			break
		}
	}

	if err := w.limiter.Wait(); err != nil {
		return err
	}
	if submitErr != nil {
		return submitErr
	}

	for i := range results {
		if !results[i].ok {
			continue
		}
		if err := w.add(results[i].rec); err != nil {
			return err
		}
	}
	return nil
}

// bfsTraversal visits directories level by level.
type bfsTraversal struct {
	*walker
}

func (t *bfsTraversal) Run(ctx context.Context, emit EmitFunc) (TraversalStats, error) {
	t.start(emit)

	queue := []string{t.cfg.Start}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return t.stats(), err
		}

		dir := queue[0]
		queue = queue[1:]

		if dir != t.cfg.Start && t.owns(dir) {
			if rec, ok := t.dirRecord(dir); ok {
				if err := t.add(rec); err != nil {
					return t.stats(), err
				}
			}
		}

		files, subdirs, ok := t.readDir(ctx, dir)
		if !ok {
			continue
		}
		if err := t.processFiles(ctx, dir, files); err != nil {
			return t.stats(), err
		}
		for _, d := range subdirs {
			queue = append(queue, filepath.Join(dir, d.Name()))
		}
	}

	return t.stats(), t.flush()
}

// dfsTraversal visits directories in pre-order: a directory's own files,
// then each subdirectory in turn.
type dfsTraversal struct {
	*walker
}

func (t *dfsTraversal) Run(ctx context.Context, emit EmitFunc) (TraversalStats, error) {
	t.start(emit)
	if err := t.visit(ctx, t.cfg.Start); err != nil {
		return t.stats(), err
	}
	return t.stats(), t.flush()
}

func (t *dfsTraversal) visit(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	files, subdirs, ok := t.readDir(ctx, dir)
	if !ok {
		return nil
	}
	if err := t.processFiles(ctx, dir, files); err != nil {
		return err
	}

	for _, d := range subdirs {
		sub := filepath.Join(dir, d.Name())
		if t.owns(sub) {
			if rec, ok := t.dirRecord(sub); ok {
				if err := t.add(rec); err != nil {
					return err
				}
			}
		}
		if err := t.visit(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

// CountFiles counts the non-directory entries under root without statting
// regular files. Directories are not counted. Only a failure to read root
// itself is returned; deeper read errors are logged and skipped.
func CountFiles(ctx context.Context, mode TraversalMode, root string, skipHidden bool) (int64, error) {
	retry := filesystem.DefaultRetryConfig()
	root = filepath.Clean(root)

	var count int64
	var visit func(dir string) error
	var queue []string

	// list counts dir's files and returns its subdirectories.
	list := func(dir string) ([]string, error) {
		entries, err := filesystem.ReadDirWithRetry(dir, retry)
		if err != nil {
			if dir == root {
				return nil, fmt.Errorf("read root %s: %w", root, err)
			}
			logging.Debug("Count pass skipping %s: %v", dir, err)
			return nil, nil
		}

		var subdirs []string
		for _, e := range entries {
			if skipHidden && strings.HasPrefix(e.Name(), ".") {
				continue
			}
			switch {
			case e.IsDir():
				subdirs = append(subdirs, filepath.Join(dir, e.Name()))
			case e.Type()&fs.ModeSymlink != 0:
				// A symlinked directory is recorded as a directory, and a
				// dangling link is a traversal error, never a record.
				info, err := filesystem.StatWithRetry(filepath.Join(dir, e.Name()), retry)
				if err != nil || info.IsDir() {
					continue
				}
				count++
			default:
				count++
			}
		}
		return subdirs, nil
	}

	if mode == ModeDFS {
		visit = func(dir string) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			subdirs, err := list(dir)
			if err != nil {
				return err
			}
			for _, sub := range subdirs {
				if err := visit(sub); err != nil {
					return err
				}
			}
			return nil
		}
		return count, visit(root)
	}

	queue = append(queue, root)
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		dir := queue[0]
		queue = queue[1:]
		subdirs, err := list(dir)
		if err != nil {
			return count, err
		}
		queue = append(queue, subdirs...)
	}
	return count, nil
}
