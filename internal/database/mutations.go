package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fileindex/internal/logging"
	"fileindex/internal/mediatypes"
	"fileindex/internal/metrics"
)

// ErrEmptyPath is returned for records without a path. The root directory
// is never stored.
var ErrEmptyPath = errors.New("record path is empty")

const upsertFile = `
INSERT INTO files (name, path, size, mtime, mimeType, isDirectory)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	name = excluded.name,
	size = excluded.size,
	mtime = excluded.mtime,
	mimeType = excluded.mimeType,
	isDirectory = excluded.isDirectory
`

// SaveBatch upserts records in one transaction, keyed on path. A row that
// fails is logged and skipped; the rest still commit. Returns the number of
// rows written.
func (d *Database) SaveBatch(ctx context.Context, records []FileRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("save_batch", start, err) }()

	written := 0
	err = d.withWriteTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertFile)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for i := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := execUpsert(ctx, stmt, &records[i]); err != nil {
				logging.Warn("Skipping index row %q: %v", records[i].Path, err)
				continue
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("save batch: %w", err)
	}

	metrics.DBRowsAffected.WithLabelValues("save_batch").Observe(float64(written))
	return written, nil
}

func execUpsert(ctx context.Context, stmt *sql.Stmt, r *FileRecord) error {
	p := NormalizePath(r.Path)
	if p == "" {
		return ErrEmptyPath
	}

	name := r.Name
	if name == "" {
		name = p[strings.LastIndexByte(p, '/')+1:]
	}

	size, mimeType, isDir := r.Size, r.MimeType, 0
	if r.IsDirectory {
		size, mimeType, isDir = 0, mediatypes.DirectoryMimeType, 1
	} else if mimeType == "" {
		mimeType = mediatypes.DefaultMimeType
	}

	_, err := stmt.ExecContext(ctx, name, p, size, FormatTime(r.ModTime), mimeType, isDir)
	return err
}

// DeletePath removes the row at path. When recursive is set every row
// beneath path is removed too. Returns the number of rows deleted.
func (d *Database) DeletePath(ctx context.Context, path string, recursive bool) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_path", start, err) }()

	p := NormalizePath(path)
	if p == "" {
		err = ErrEmptyPath
		return 0, err
	}

	var deleted int64
	err = d.withWriteTx(ctx, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		if recursive {
			res, err = tx.ExecContext(ctx, "DELETE FROM files WHERE path = ? OR path GLOB ?", p, escapeGlob(p)+"/*")
		} else {
			res, err = tx.ExecContext(ctx, "DELETE FROM files WHERE path = ?", p)
		}
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete %q: %w", p, err)
	}

	metrics.DBRowsAffected.WithLabelValues("delete_path").Observe(float64(deleted))
	return deleted, nil
}

// GetFile returns the row stored at path, or sql.ErrNoRows.
func (d *Database) GetFile(ctx context.Context, path string) (*FileRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE path = ?", NormalizePath(path))
	return scanFile(row)
}
