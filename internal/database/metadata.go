package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

const (
	MetaLastBuilt     = "last_built"
	MetaBaseDirectory = "base_directory"
)

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist or its value is NULL.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var err error
	defer func() {
		if errors.Is(err, sql.ErrNoRows) {
			recordQuery("get_metadata", start, nil)
			return
		}
		recordQuery("get_metadata", start, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value sql.NullString
	err = d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	if !value.Valid {
		err = sql.ErrNoRows
		return "", err
	}
	return value.String, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_metadata", start, err) }()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// LastBuilt returns when the last full build finished.
// Returns zero time if the index has never been built or was cleared.
func (d *Database) LastBuilt(ctx context.Context) (time.Time, error) {
	value, err := d.GetMetadata(ctx, MetaLastBuilt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

// IsBuilt reports whether the index holds a completed build of root.
// A build of some other root does not count.
func (d *Database) IsBuilt(ctx context.Context, root string) (bool, error) {
	lastBuilt, err := d.LastBuilt(ctx)
	if err != nil {
		return false, err
	}
	if lastBuilt.IsZero() {
		return false, nil
	}

	base, err := d.GetMetadata(ctx, MetaBaseDirectory)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return filepath.Clean(base) == filepath.Clean(root), nil
}

// MarkBuilt records a completed build of root.
func (d *Database) MarkBuilt(ctx context.Context, at time.Time, root string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_metadata", start, err) }()

	err = d.withWriteTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO metadata (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		if _, err := stmt.ExecContext(ctx, MetaLastBuilt, at.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, MetaBaseDirectory, filepath.Clean(root))
		return err
	})
	if err != nil {
		err = fmt.Errorf("mark built: %w", err)
	}
	return err
}

// Clear deletes every file row and resets the build metadata.
func (d *Database) Clear(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear", start, err) }()

	err = d.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM files"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "UPDATE metadata SET value = NULL WHERE key IN (?, ?)",
			MetaLastBuilt, MetaBaseDirectory)
		return err
	})
	if err != nil {
		err = fmt.Errorf("clear index: %w", err)
	}
	return err
}
