package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"fileindex/internal/logging"
	"fileindex/internal/metrics"
)

// Default timeout for single-statement operations
const defaultTimeout = 5 * time.Second

// Database is the persisted index for one root directory.
type Database struct {
	db     *sql.DB
	dbPath string
	// writeMu serializes writers ahead of SQLite's own lock so concurrent
	// builds and mutations queue here instead of spinning on SQLITE_BUSY.
	writeMu sync.Mutex
}

// Options tunes the connection pool. A nil *Options uses the defaults.
type Options struct {
	MaxOpenConns int
	BusyTimeout  time.Duration
}

func (o *Options) withDefaults() Options {
	out := Options{MaxOpenConns: 25, BusyTimeout: 5 * time.Second}
	if o == nil {
		return out
	}
	if o.MaxOpenConns > 0 {
		out.MaxOpenConns = o.MaxOpenConns
	}
	if o.BusyTimeout > 0 {
		out.BusyTimeout = o.BusyTimeout
	}
	return out
}

// DatabasePathForRoot returns the database file for an index root. Distinct
// roots hash to distinct names, so several roots can share dataDir.
func DatabasePathForRoot(dataDir, root string) string {
	return filepath.Join(dataDir, fmt.Sprintf("index-%016x.db", xxhash.Sum64String(filepath.Clean(root))))
}

// New opens the database file at dbPath and creates the schema.
// The parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string, opts *Options) (*Database, error) {
	o := opts.withDefaults()
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// _txlock=immediate takes the write lock at BEGIN, so two writers never
	// deadlock upgrading from a read lock.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=%d&_txlock=immediate",
		dbPath, o.BusyTimeout.Milliseconds())

	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(min(10, o.MaxOpenConns))
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.Initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	path TEXT NOT NULL UNIQUE,
	size INTEGER NOT NULL DEFAULT 0,
	mtime TEXT NOT NULL,
	mimeType TEXT NOT NULL,
	isDirectory INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);
CREATE INDEX IF NOT EXISTS idx_files_name ON files(name);
CREATE INDEX IF NOT EXISTS idx_files_mtime ON files(mtime);
CREATE INDEX IF NOT EXISTS idx_files_mimeType ON files(mimeType);
CREATE INDEX IF NOT EXISTS idx_files_isDirectory ON files(isDirectory);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT
);

INSERT OR IGNORE INTO metadata (key, value) VALUES ('last_built', NULL);
INSERT OR IGNORE INTO metadata (key, value) VALUES ('base_directory', NULL);
`

// Initialize creates the tables and indexes if they do not exist.
// It is safe to call repeatedly.
func (d *Database) Initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	_, err = d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// withWriteTx runs fn inside a write transaction while holding the store
// write lock. The transaction commits if fn returns nil.
func (d *Database) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	txStart := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err = fn(tx); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(txStart).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(txStart).Seconds())
		return fmt.Errorf("commit: %w", err)
	}
	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(txStart).Seconds())
	return nil
}

// Checkpoint flushes the WAL into the main database file and truncates it.
func (d *Database) Checkpoint(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("checkpoint", start, err) }()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	_, err = d.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// CountFiles returns the number of file and directory rows.
func (d *Database) CountFiles(ctx context.Context) (IndexCounts, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_files", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var counts IndexCounts
	err = d.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN isDirectory = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN isDirectory = 1 THEN 1 ELSE 0 END), 0)
		FROM files
	`).Scan(&counts.Files, &counts.Directories)
	return counts, err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions logs problems that would otherwise surface as
// opaque "readonly database" errors on the first write.
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only (mode %v), writes will fail", p, info.Mode())
		if p == dbPath {
			continue
		}
		if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions on %s: %v", p, chmodErr)
		} else {
			logging.Info("Fixed permissions on %s", p)
		}
	}

	return nil
}
