package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"fileindex/internal/mediatypes"
)

// ErrInvalidMediaType is returned when a type filter is outside image, audio
// and video.
var ErrInvalidMediaType = errors.New("invalid media type")

const fileColumns = "name, path, size, mtime, mimeType, isDirectory"

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*FileRecord, error) {
	var (
		f     FileRecord
		mtime string
		isDir int
	)
	if err := s.Scan(&f.Name, &f.Path, &f.Size, &mtime, &f.MimeType, &isDir); err != nil {
		return nil, err
	}
	f.IsDirectory = isDir != 0
	if t, err := ParseTime(mtime); err == nil {
		f.ModTime = t
	}
	return &f, nil
}

// escapeGlob quotes GLOB metacharacters so s matches only itself.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// where accumulates AND-ed conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// addScope restricts rows to those under dir. Non-recursive scopes exclude
// anything one level deeper than the immediate children. GLOB is used rather
// than LIKE so the match is case-sensitive, as paths are.
func (w *where) addScope(dir string, recursive bool) {
	prefix := ""
	if dir = NormalizePath(dir); dir != "" {
		prefix = escapeGlob(dir) + "/"
		w.add("path GLOB ?", prefix+"*")
	}
	if !recursive {
		w.add("path NOT GLOB ?", prefix+"*/*")
	}
}

func (w *where) addMediaType(mt mediatypes.MediaType) error {
	valid, ok := mediatypes.ParseMediaType(string(mt))
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMediaType, mt)
	}
	w.add("mimeType LIKE ?", valid.MimePrefix()+"%")
	return nil
}

// orderBy builds the ORDER BY clause. Only allow-listed column names reach
// the SQL text. Directories always come first regardless of direction.
func orderBy(p Page) string {
	col := string(mediatypes.ParseSortField(string(p.SortBy)))
	if col == string(mediatypes.SortByName) || col == string(mediatypes.SortByPath) {
		col += " COLLATE " + NaturalCollation
	}
	dir := "ASC"
	if mediatypes.ParseSortOrder(string(p.SortOrder)) == mediatypes.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY isDirectory DESC, %s %s, path ASC", col, dir)
}

// listPage runs the count and the page query concurrently.
func (d *Database) listPage(ctx context.Context, operation string, w *where, p Page) (files []FileRecord, total int, err error) {
	start := time.Now()
	defer func() { recordQuery(operation, start, err) }()

	p = p.normalize()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	workers := pool.New().WithErrors().WithContext(ctx)

	workers.Go(func(ctx context.Context) error {
		return d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files"+w.String(), w.args...).Scan(&total)
	})

	workers.Go(func(ctx context.Context) error {
		query := "SELECT " + fileColumns + " FROM files" + w.String() + orderBy(p) + " LIMIT ? OFFSET ?"
		args := append(append([]any{}, w.args...), p.Limit, p.offset())

		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		files = make([]FileRecord, 0, p.Limit)
		for rows.Next() {
			f, err := scanFile(rows)
			if err != nil {
				return err
			}
			files = append(files, *f)
		}
		return rows.Err()
	})

	if err = workers.Wait(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", operation, err)
	}
	return files, total, nil
}

func hasMore(p Page, returned, total int) bool {
	return p.normalize().offset()+returned < total
}

// Search finds rows whose name contains opts.Query, case-insensitively.
func (d *Database) Search(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	w := &where{}
	if opts.Query != "" {
		w.add(`name LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(opts.Query)+"%")
	}
	w.addScope(opts.Directory, opts.Recursive)
	if opts.Type != "" {
		if err := w.addMediaType(opts.Type); err != nil {
			return nil, err
		}
	}

	files, total, err := d.listPage(ctx, "search", w, opts.Page)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Results: files,
		Total:   total,
		HasMore: hasMore(opts.Page, len(files), total),
	}, nil
}

// DirectoryChildren lists the immediate children of opts.Directory.
func (d *Database) DirectoryChildren(ctx context.Context, opts ListOptions) (*FileList, error) {
	w := &where{}
	w.addScope(opts.Directory, false)

	files, total, err := d.listPage(ctx, "directory_children", w, opts.Page)
	if err != nil {
		return nil, err
	}

	if opts.IncludeCover {
		for i := range files {
			if !files[i].IsDirectory {
				continue
			}
			cover, err := d.coverImage(ctx, files[i].Path)
			if err != nil {
				return nil, fmt.Errorf("cover for %q: %w", files[i].Path, err)
			}
			files[i].Cover = cover
		}
	}

	return &FileList{
		Files:   files,
		Total:   total,
		HasMore: hasMore(opts.Page, len(files), total),
	}, nil
}

// coverImage returns the first image beneath dir in natural path order, or
// "" if there is none.
func (d *Database) coverImage(ctx context.Context, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var cover string
	err := d.db.QueryRowContext(ctx, `
		SELECT path FROM files
		WHERE isDirectory = 0 AND mimeType LIKE 'image/%' AND path GLOB ?
		ORDER BY path COLLATE `+NaturalCollation+` ASC
		LIMIT 1
	`, escapeGlob(dir)+"/*").Scan(&cover)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return cover, err
}

// FindMedia lists files of one media class under opts.Directory.
func (d *Database) FindMedia(ctx context.Context, opts MediaOptions) (*FileList, error) {
	w := &where{}
	w.add("isDirectory = 0")
	if err := w.addMediaType(opts.MediaType); err != nil {
		return nil, err
	}
	w.addScope(opts.Directory, opts.Recursive)

	files, total, err := d.listPage(ctx, "find_media", w, opts.Page)
	if err != nil {
		return nil, err
	}
	return &FileList{
		Files:   files,
		Total:   total,
		HasMore: hasMore(opts.Page, len(files), total),
	}, nil
}

// RandomImage returns a random image anywhere beneath dir, or nil if there
// are none.
func (d *Database) RandomImage(ctx context.Context, dir string) (rec *FileRecord, err error) {
	start := time.Now()
	defer func() { recordQuery("random_image", start, err) }()

	w := &where{}
	w.add("isDirectory = 0")
	w.add("mimeType LIKE ?", mediatypes.MediaImage.MimePrefix()+"%")
	w.addScope(dir, true)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files"+w.String()+" ORDER BY RANDOM() LIMIT 1", w.args...)
	rec, err = scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// EachFile calls fn for every row under dir, directories included, in path
// order. Rows come from a single cursor with no timeout beyond ctx, so a
// caller streaming to a slow client must bound fn itself. An error from fn
// stops the scan and is returned unchanged.
func (d *Database) EachFile(ctx context.Context, dir string, fn func(*FileRecord) error) (err error) {
	start := time.Now()
	defer func() { recordQuery("each_file", start, err) }()

	w := &where{}
	w.addScope(dir, true)

	rows, err := d.db.QueryContext(ctx, "SELECT "+fileColumns+" FROM files"+w.String()+" ORDER BY path", w.args...)
	if err != nil {
		return fmt.Errorf("each_file: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return fmt.Errorf("each_file: %w", err)
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return rows.Err()
}
