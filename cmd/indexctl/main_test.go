package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fileindex/internal/database"
	"fileindex/internal/indexer"
)

// setupEnv points the command at a fresh tree and database directory.
func setupEnv(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		full := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("MEDIA_DIR", root)
	t.Setenv("DATABASE_DIR", t.TempDir())
	t.Setenv("INDEX_CONFIG", "")
	t.Setenv("INDEX_WORKERS", "2")
	return root
}

func runCmd(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)
	for _, cmd := range []string{"build", "search", "delete", "record"} {
		if !strings.Contains(buf.String(), cmd) {
			t.Errorf("usage does not mention %s", cmd)
		}
	}
}

func TestNoArguments(t *testing.T) {
	if code, _, _ := runCmd(t); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestUnknownCommand(t *testing.T) {
	setupEnv(t)

	code, _, stderr := runCmd(t, "frob\nnicate")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Unknown command: frob_nicate") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestBuildThenQuery(t *testing.T) {
	setupEnv(t, "photos/a.jpg", "photos/b.png", "music/song.mp3", "notes.txt")

	code, stdout, stderr := runCmd(t, "build")
	if code != 0 {
		t.Fatalf("build exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Indexed 4 files and 2 directories") {
		t.Errorf("build output = %q", stdout)
	}

	code, stdout, _ = runCmd(t, "stats")
	if code != 0 {
		t.Fatal("stats failed")
	}
	var stats indexer.Stats
	if err := json.Unmarshal([]byte(stdout), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.FileCount != 4 || stats.Directories != 2 {
		t.Errorf("stats = %+v", stats)
	}

	_, stdout, _ = runCmd(t, "search", "song")
	var found database.SearchResult
	if err := json.Unmarshal([]byte(stdout), &found); err != nil {
		t.Fatal(err)
	}
	if found.Total != 1 || found.Results[0].Path != "music/song.mp3" {
		t.Errorf("search = %+v", found)
	}

	_, stdout, _ = runCmd(t, "media", "image", "photos")
	var media database.FileList
	if err := json.Unmarshal([]byte(stdout), &media); err != nil {
		t.Fatal(err)
	}
	if media.Total != 2 {
		t.Errorf("media total = %d, want 2", media.Total)
	}

	_, stdout, _ = runCmd(t, "export", "photos")
	if lines := strings.Count(stdout, "\n"); lines != 2 {
		t.Errorf("export of photos printed %d lines, want 2", lines)
	}

	if code, _, _ := runCmd(t, "random", "music"); code != 1 {
		t.Errorf("random without images exit = %d, want 1", code)
	}
	if code, _, _ := runCmd(t, "media", "spreadsheet"); code != 1 {
		t.Errorf("media with bad type exit = %d, want 1", code)
	}
}

func TestRecordAndDelete(t *testing.T) {
	root := setupEnv(t, "a.txt")
	if code, _, stderr := runCmd(t, "build"); code != 0 {
		t.Fatalf("build: %s", stderr)
	}

	if err := os.WriteFile(filepath.Join(root, "new.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, stdout, stderr := runCmd(t, "record", "new.txt")
	if code != 0 {
		t.Fatalf("record exit %d: %s", code, stderr)
	}
	var rec database.FileRecord
	if err := json.Unmarshal([]byte(stdout), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Path != "new.txt" || rec.Size != 5 {
		t.Errorf("recorded = %+v", rec)
	}

	if code, _, _ := runCmd(t, "delete", "new.txt"); code != 0 {
		t.Error("delete of an indexed file failed")
	}
	if code, _, _ := runCmd(t, "delete", "new.txt"); code != 1 {
		t.Error("second delete should fail")
	}
	if code, _, _ := runCmd(t, "record"); code != 1 {
		t.Error("record without a path should fail")
	}
}

func TestBadConfiguration(t *testing.T) {
	setupEnv(t)
	t.Setenv("INDEX_MODE", "sideways")

	code, _, stderr := runCmd(t, "stats")
	if code != 1 || !strings.Contains(stderr, "INDEX_MODE") {
		t.Errorf("exit %d, stderr %q", code, stderr)
	}
}

func TestSanitizeCommand(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"build", "build"},
		{"re-build_2", "re-build_2"},
		{"rm -rf /", "rm_-rf__"},
		{"\x1b[31mred", "__31mred"},
	}
	for _, tt := range tests {
		if got := sanitizeCommand(tt.in); got != tt.want {
			t.Errorf("sanitizeCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFitWidth(t *testing.T) {
	if got := fitWidth("abcdef", 4); got != "abc" {
		t.Errorf("fitWidth() = %q", got)
	}
	if got := fitWidth("abc", 0); got != "abc" {
		t.Errorf("fitWidth() without width = %q", got)
	}
	if isTerminal(&bytes.Buffer{}) || terminalWidth(&bytes.Buffer{}) != 0 {
		t.Error("a buffer is not a terminal")
	}
}

func TestProgressLine(t *testing.T) {
	line := progressLine(indexer.BuildProgress{Total: 10, Processed: 5, Percent: 50, Directories: 2})
	if line != "Indexing: 5/10 files (50.0%), 2 directories, 0 errors" {
		t.Errorf("progressLine() = %q", line)
	}
}
