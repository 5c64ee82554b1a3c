package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fileindex/internal/mediatypes"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestDB creates a database in a fresh temp directory.
func setupTestDB(t testing.TB) *Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(context.Background(), dbPath, nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func file(p string, size int64, mimeType string) FileRecord {
	return FileRecord{
		Name:     p[strings.LastIndexByte(p, '/')+1:],
		Path:     p,
		Size:     size,
		ModTime:  baseTime,
		MimeType: mimeType,
	}
}

func dir(p string) FileRecord {
	return FileRecord{
		Name:        p[strings.LastIndexByte(p, '/')+1:],
		Path:        p,
		ModTime:     baseTime,
		IsDirectory: true,
	}
}

func seed(t testing.TB, db *Database, records ...FileRecord) {
	t.Helper()
	n, err := db.SaveBatch(context.Background(), records)
	if err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}
	if n != len(records) {
		t.Fatalf("SaveBatch() wrote %d rows, want %d", n, len(records))
	}
}

func paths(files []FileRecord) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewCreatesDatabaseFile(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "index.db")
	db, err := New(context.Background(), dbPath, &Options{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}
}

func TestNewFailsForMissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "index.db"), nil)
	if err == nil {
		t.Fatal("New() should fail when the parent directory does not exist")
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	seed(t, db, file("a.txt", 1, "text/plain"))

	for i := 0; i < 3; i++ {
		if err := db.Initialize(ctx); err != nil {
			t.Fatalf("Initialize() #%d error = %v", i, err)
		}
	}

	counts, err := db.CountFiles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Files != 1 {
		t.Errorf("Initialize must not drop rows, got %d files", counts.Files)
	}
}

func TestDatabasePathForRoot(t *testing.T) {
	t.Parallel()

	a := DatabasePathForRoot("/data", "/media/photos")
	b := DatabasePathForRoot("/data", "/media/photos/")
	c := DatabasePathForRoot("/data", "/media/music")

	if a != b {
		t.Errorf("equivalent roots should share a file: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("distinct roots must not share a file: %q", a)
	}
	if filepath.Dir(a) != "/data" {
		t.Errorf("database should live in data dir, got %q", a)
	}
	base := filepath.Base(a)
	if !strings.HasPrefix(base, "index-") || !strings.HasSuffix(base, ".db") || len(base) != len("index-")+16+len(".db") {
		t.Errorf("unexpected file name %q", base)
	}
}

func TestNaturalCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"file2", "file10", -1},
		{"file10", "file2", 1},
		{"file1", "file1", 0},
		{"a", "B", -1},
		{"img9.jpg", "img10.jpg", -1},
	}

	for _, tt := range tests {
		got := naturalCompare(tt.a, tt.b)
		if (got < 0) != (tt.want < 0) || (got > 0) != (tt.want > 0) {
			t.Errorf("naturalCompare(%q, %q) = %d, want sign %d", tt.a, tt.b, got, tt.want)
		}
	}

	if naturalCompare("a", "A") == 0 {
		t.Error("distinct strings must not compare equal")
	}
}

func TestNaturalCollationInSQL(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	seed(t, db, file("file10.txt", 1, "text/plain"), file("file2.txt", 1, "text/plain"), file("file1.txt", 1, "text/plain"))

	rows, err := db.db.QueryContext(context.Background(), "SELECT name FROM files ORDER BY name COLLATE "+NaturalCollation)
	if err != nil {
		t.Fatalf("ORDER BY with the natural collation failed: %v", err)
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		got = append(got, name)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	if want := []string{"file1.txt", "file2.txt", "file10.txt"}; !equalStrings(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
}

func TestFormatAndParseTime(t *testing.T) {
	t.Parallel()

	local := time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.FixedZone("X", 3600))
	s := FormatTime(local)
	if s != "2024-01-02T02:04:05.678Z" {
		t.Errorf("FormatTime() = %q", s)
	}

	parsed, err := ParseTime(s)
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Equal(local) {
		t.Errorf("ParseTime() = %v, want %v", parsed, local)
	}

	if _, err := ParseTime("2024-01-02T03:04:05Z"); err != nil {
		t.Errorf("RFC3339 should parse: %v", err)
	}
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":          "",
		"/":         "",
		".":         "",
		"a":         "a",
		"/a/b/":     "a/b",
		"a//b":      "a/b",
		"a/./b":     "a/b",
		"../escape": "escape",
	}
	for in, want := range tests {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuiltStateInvariant(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	root := "/media/library"

	built, err := db.IsBuilt(ctx, root)
	if err != nil || built {
		t.Fatalf("fresh database IsBuilt() = %v, %v; want false, nil", built, err)
	}

	seed(t, db, file("a.txt", 1, "text/plain"))
	if err := db.MarkBuilt(ctx, baseTime, root); err != nil {
		t.Fatal(err)
	}

	if built, _ := db.IsBuilt(ctx, root); !built {
		t.Error("IsBuilt() should be true after MarkBuilt")
	}
	if built, _ := db.IsBuilt(ctx, root+"/"); !built {
		t.Error("IsBuilt() should ignore a trailing slash on the root")
	}
	if built, _ := db.IsBuilt(ctx, "/media/other"); built {
		t.Error("IsBuilt() must be false for a different root")
	}

	last, err := db.LastBuilt(ctx)
	if err != nil || !last.Equal(baseTime) {
		t.Errorf("LastBuilt() = %v, %v; want %v", last, err, baseTime)
	}

	if err := db.SetMetadata(ctx, MetaBaseDirectory, "/somewhere/else"); err != nil {
		t.Fatal(err)
	}
	if built, _ := db.IsBuilt(ctx, root); built {
		t.Error("IsBuilt() must be false once base_directory no longer matches")
	}

	if err := db.MarkBuilt(ctx, baseTime, root); err != nil {
		t.Fatal(err)
	}
	if err := db.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if built, _ := db.IsBuilt(ctx, root); built {
		t.Error("IsBuilt() must be false after Clear")
	}
	if last, _ := db.LastBuilt(ctx); !last.IsZero() {
		t.Errorf("LastBuilt() after Clear = %v, want zero", last)
	}
	if _, err := db.GetMetadata(ctx, MetaBaseDirectory); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("base_directory after Clear: err = %v, want sql.ErrNoRows", err)
	}
	counts, _ := db.CountFiles(ctx)
	if counts.Files != 0 || counts.Directories != 0 {
		t.Errorf("Clear left rows behind: %+v", counts)
	}
}

func TestGetMetadataMissingKey(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	if _, err := db.GetMetadata(context.Background(), "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetMetadata() error = %v, want sql.ErrNoRows", err)
	}
}

func TestCheckpoint(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	seed(t, db, file("a.txt", 1, "text/plain"))
	if err := db.Checkpoint(context.Background()); err != nil {
		t.Errorf("Checkpoint() error = %v", err)
	}
}

func TestCountFiles(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	seed(t, db,
		dir("a"),
		dir("a/b"),
		file("a/x.txt", 1, "text/plain"),
		file("a/b/y.txt", 1, "text/plain"),
		file("z.jpg", 1, "image/jpeg"),
	)

	counts, err := db.CountFiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts.Files != 3 || counts.Directories != 2 {
		t.Errorf("CountFiles() = %+v, want 3 files and 2 directories", counts)
	}
}

func TestListPageRejectsInvalidMediaType(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	_, err := db.FindMedia(context.Background(), MediaOptions{MediaType: mediatypes.MediaType("application")})
	if !errors.Is(err, ErrInvalidMediaType) {
		t.Errorf("FindMedia() error = %v, want ErrInvalidMediaType", err)
	}
}
