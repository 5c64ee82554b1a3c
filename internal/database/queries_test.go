package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"
	"time"

	"fileindex/internal/mediatypes"
)

func TestEscapeGlob(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"plain":    "plain",
		"a*b":      "a[*]b",
		"what?":    "what[?]",
		"set[1]":   "set[[]1]",
		"ünïcødé":  "ünïcødé",
		"*?[":      "[*][?][[]",
		"back\\sl": "back\\sl",
	}
	for in, want := range tests {
		if got := escapeGlob(in); got != want {
			t.Errorf("escapeGlob(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOrderBy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		page Page
		want string
	}{
		{"default", Page{}, " ORDER BY isDirectory DESC, name COLLATE NATSORT ASC, path ASC"},
		{"size desc", Page{SortBy: mediatypes.SortBySize, SortOrder: mediatypes.SortDesc}, " ORDER BY isDirectory DESC, size DESC, path ASC"},
		{"path", Page{SortBy: mediatypes.SortByPath}, " ORDER BY isDirectory DESC, path COLLATE NATSORT ASC, path ASC"},
		{"injection", Page{SortBy: "name; DROP TABLE files", SortOrder: "sideways"}, " ORDER BY isDirectory DESC, name COLLATE NATSORT ASC, path ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := orderBy(tt.page); got != tt.want {
				t.Errorf("orderBy() = %q, want %q", got, tt.want)
			}
		})
	}
}

func sortedPaths(files []FileRecord) []string {
	out := paths(files)
	sort.Strings(out)
	return out
}

func searchFixture(t *testing.T) *Database {
	t.Helper()
	db := setupTestDB(t)
	seed(t, db,
		dir("Photos"),
		dir("Photos/2023"),
		file("Photos/Beach.JPG", 100, "image/jpeg"),
		file("Photos/2023/beach-day.png", 200, "image/png"),
		file("Photos/notes.txt", 10, "text/plain"),
		dir("Music"),
		file("Music/beach_boys.mp3", 300, "audio/mpeg"),
		file("Music/beachXboys.mp3", 300, "audio/mpeg"),
		file("photos/lower.jpg", 5, "image/jpeg"),
		file("100%.txt", 1, "text/plain"),
	)
	return db
}

func TestSearch(t *testing.T) {
	t.Parallel()

	db := searchFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		opts SearchOptions
		want []string
	}{
		{
			name: "case insensitive across tree",
			opts: SearchOptions{Query: "BEACH", Recursive: true},
			want: []string{"Music/beach_boys.mp3", "Music/beachXboys.mp3", "Photos/2023/beach-day.png", "Photos/Beach.JPG"},
		},
		{
			name: "underscore is literal",
			opts: SearchOptions{Query: "beach_", Recursive: true},
			want: []string{"Music/beach_boys.mp3"},
		},
		{
			name: "percent is literal",
			opts: SearchOptions{Query: "%", Recursive: true},
			want: []string{"100%.txt"},
		},
		{
			name: "non-recursive scope",
			opts: SearchOptions{Query: "beach", Directory: "Photos"},
			want: []string{"Photos/Beach.JPG"},
		},
		{
			name: "recursive scope",
			opts: SearchOptions{Query: "beach", Directory: "/Photos/", Recursive: true},
			want: []string{"Photos/2023/beach-day.png", "Photos/Beach.JPG"},
		},
		{
			name: "scope is case sensitive",
			opts: SearchOptions{Directory: "photos", Recursive: true},
			want: []string{"photos/lower.jpg"},
		},
		{
			name: "type filter",
			opts: SearchOptions{Query: "beach", Recursive: true, Type: mediatypes.MediaAudio},
			want: []string{"Music/beach_boys.mp3", "Music/beachXboys.mp3"},
		},
		{
			name: "root non-recursive",
			opts: SearchOptions{},
			want: []string{"Music", "Photos", "100%.txt"},
		},
		{
			name: "no match",
			opts: SearchOptions{Query: "zzz", Recursive: true},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := db.Search(ctx, tt.opts)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			got := sortedPaths(res.Results)
			want := append([]string{}, tt.want...)
			sort.Strings(want)
			if !equalStrings(got, want) {
				t.Errorf("Search() = %v, want %v", got, tt.want)
			}
			if res.Total != len(tt.want) {
				t.Errorf("Total = %d, want %d", res.Total, len(tt.want))
			}
			if res.HasMore {
				t.Error("HasMore should be false for a single page")
			}
		})
	}
}

func TestSearchInvalidType(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	_, err := db.Search(context.Background(), SearchOptions{Query: "x", Type: "document"})
	if !errors.Is(err, ErrInvalidMediaType) {
		t.Errorf("Search() error = %v, want ErrInvalidMediaType", err)
	}
}

func TestPaginationCoversEveryRowOnce(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	const n = 237
	records := make([]FileRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, file(fmt.Sprintf("many/item%03d.txt", i), int64(i), "text/plain"))
	}
	seed(t, db, records...)

	seen := make(map[string]bool, n)
	for page := 1; ; page++ {
		res, err := db.DirectoryChildren(ctx, ListOptions{Directory: "many", Page: Page{Page: page, Limit: 50}})
		if err != nil {
			t.Fatal(err)
		}
		if res.Total != n {
			t.Fatalf("page %d: Total = %d, want %d", page, res.Total, n)
		}
		for _, f := range res.Files {
			if seen[f.Path] {
				t.Errorf("%s returned twice", f.Path)
			}
			seen[f.Path] = true
		}
		wantMore := page*50 < n
		if res.HasMore != wantMore {
			t.Errorf("page %d: HasMore = %v, want %v", page, res.HasMore, wantMore)
		}
		if !res.HasMore {
			break
		}
	}
	if len(seen) != n {
		t.Errorf("saw %d rows, want %d", len(seen), n)
	}

	past, err := db.DirectoryChildren(ctx, ListOptions{Directory: "many", Page: Page{Page: 99, Limit: 50}})
	if err != nil {
		t.Fatal(err)
	}
	if len(past.Files) != 0 || past.HasMore || past.Total != n {
		t.Errorf("page past the end = %d files, hasMore %v, total %d", len(past.Files), past.HasMore, past.Total)
	}
}

func TestPaginationClampsLimit(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	records := make([]FileRecord, 0, 120)
	for i := 0; i < 120; i++ {
		records = append(records, file(fmt.Sprintf("f%03d", i), 1, "text/plain"))
	}
	seed(t, db, records...)

	res, err := db.DirectoryChildren(context.Background(), ListOptions{Page: Page{Page: -3, Limit: 0}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != DefaultPageLimit || !res.HasMore {
		t.Errorf("got %d files, hasMore %v; want %d, true", len(res.Files), res.HasMore, DefaultPageLimit)
	}

	res, err = db.DirectoryChildren(context.Background(), ListOptions{Page: Page{Limit: 5000}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 120 || res.HasMore {
		t.Errorf("got %d files, hasMore %v; want 120, false", len(res.Files), res.HasMore)
	}
}

func TestSortOrders(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	f1 := file("d/file1.txt", 30, "text/plain")
	f2 := file("d/file2.txt", 10, "text/plain")
	f10 := file("d/file10.txt", 20, "text/plain")
	f1.ModTime = baseTime.Add(2 * time.Hour)
	f2.ModTime = baseTime
	f10.ModTime = baseTime.Add(time.Hour)
	sub := dir("d/zeta")

	seed(t, db, f10, f2, f1, sub)

	tests := []struct {
		name string
		page Page
		want []string
	}{
		{"natural name asc", Page{}, []string{"d/zeta", "d/file1.txt", "d/file2.txt", "d/file10.txt"}},
		{"natural name desc", Page{SortOrder: mediatypes.SortDesc}, []string{"d/zeta", "d/file10.txt", "d/file2.txt", "d/file1.txt"}},
		{"size asc", Page{SortBy: mediatypes.SortBySize}, []string{"d/zeta", "d/file2.txt", "d/file10.txt", "d/file1.txt"}},
		{"mtime desc", Page{SortBy: mediatypes.SortByMtime, SortOrder: mediatypes.SortDesc}, []string{"d/zeta", "d/file1.txt", "d/file10.txt", "d/file2.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := db.DirectoryChildren(ctx, ListOptions{Directory: "d", Page: tt.page})
			if err != nil {
				t.Fatal(err)
			}
			if got := paths(res.Files); !equalStrings(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDirectoryChildrenCover(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	seed(t, db,
		dir("albums"),
		dir("albums/a"),
		file("albums/a/img10.jpg", 1, "image/jpeg"),
		file("albums/a/img2.jpg", 1, "image/jpeg"),
		file("albums/a/readme.txt", 1, "text/plain"),
		dir("albums/b"),
		dir("albums/b/nested"),
		file("albums/b/nested/deep.png", 1, "image/png"),
		dir("albums/empty"),
		file("albums/loose.jpg", 1, "image/jpeg"),
	)

	ctx := context.Background()
	res, err := db.DirectoryChildren(ctx, ListOptions{Directory: "albums", IncludeCover: true})
	if err != nil {
		t.Fatal(err)
	}

	covers := map[string]string{}
	for _, f := range res.Files {
		covers[f.Path] = f.Cover
	}
	want := map[string]string{
		"albums/a":         "albums/a/img2.jpg",
		"albums/b":         "albums/b/nested/deep.png",
		"albums/empty":     "",
		"albums/loose.jpg": "",
	}
	for p, c := range want {
		if covers[p] != c {
			t.Errorf("cover[%s] = %q, want %q", p, covers[p], c)
		}
	}

	plain, err := db.DirectoryChildren(ctx, ListOptions{Directory: "albums"})
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range plain.Files {
		if f.Cover != "" {
			t.Errorf("%s has cover %q without IncludeCover", f.Path, f.Cover)
		}
	}
}

func TestFindMedia(t *testing.T) {
	t.Parallel()

	db := searchFixture(t)
	ctx := context.Background()

	res, err := db.FindMedia(ctx, MediaOptions{MediaType: mediatypes.MediaImage, Recursive: true, Page: Page{SortBy: mediatypes.SortByPath}})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Photos/2023/beach-day.png", "Photos/Beach.JPG", "photos/lower.jpg"}
	if got := sortedPaths(res.Files); !equalStrings(got, want) || res.Total != 3 {
		t.Fatalf("FindMedia() = %v, want %v", got, want)
	}
	for _, f := range res.Files {
		if f.IsDirectory {
			t.Errorf("FindMedia returned directory %s", f.Path)
		}
	}

	shallow, err := db.FindMedia(ctx, MediaOptions{MediaType: mediatypes.MediaImage, Directory: "Photos"})
	if err != nil {
		t.Fatal(err)
	}
	if got := paths(shallow.Files); !equalStrings(got, []string{"Photos/Beach.JPG"}) {
		t.Errorf("non-recursive FindMedia() = %v", got)
	}
}

func TestRandomImage(t *testing.T) {
	t.Parallel()

	db := searchFixture(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		img, err := db.RandomImage(ctx, "Photos")
		if err != nil {
			t.Fatal(err)
		}
		if img == nil {
			t.Fatal("RandomImage() = nil, want an image")
		}
		if img.Path != "Photos/Beach.JPG" && img.Path != "Photos/2023/beach-day.png" {
			t.Errorf("RandomImage() = %s, outside Photos", img.Path)
		}
	}

	none, err := db.RandomImage(ctx, "Music")
	if err != nil || none != nil {
		t.Errorf("RandomImage(Music) = %v, %v; want nil, nil", none, err)
	}
}

func TestEachFile(t *testing.T) {
	t.Parallel()

	db := searchFixture(t)
	ctx := context.Background()

	var got []string
	err := db.EachFile(ctx, "Photos", func(f *FileRecord) error {
		got = append(got, f.Path)
		return nil
	})
	if err != nil {
		t.Fatalf("EachFile() error = %v", err)
	}
	want := []string{"Photos/2023", "Photos/2023/beach-day.png", "Photos/Beach.JPG", "Photos/notes.txt"}
	if !equalStrings(got, want) {
		t.Errorf("EachFile(Photos) = %v, want %v", got, want)
	}

	count := 0
	if err := db.EachFile(ctx, "", func(*FileRecord) error { count++; return nil }); err != nil {
		t.Fatal(err)
	}
	if count != 10 {
		t.Errorf("EachFile(root) visited %d rows, want 10", count)
	}

	stop := errors.New("stop")
	visited := 0
	err = db.EachFile(ctx, "", func(*FileRecord) error {
		visited++
		return stop
	})
	if !errors.Is(err, stop) || visited != 1 {
		t.Errorf("EachFile() with failing callback = %v after %d rows", err, visited)
	}
}

func TestHugePageDoesNotOverflow(t *testing.T) {
	t.Parallel()

	db := searchFixture(t)
	ctx := context.Background()

	for _, page := range []int{math.MaxInt/2 + 2, math.MaxInt} {
		res, err := db.Search(ctx, SearchOptions{Recursive: true, Page: Page{Page: page, Limit: 2}})
		if err != nil {
			t.Fatalf("Search(page=%d) error = %v", page, err)
		}
		if len(res.Results) != 0 || res.HasMore || res.Total != 10 {
			t.Errorf("Search(page=%d) = %d results, total %d, hasMore %v; want 0, 10, false",
				page, len(res.Results), res.Total, res.HasMore)
		}

		list, err := db.DirectoryChildren(ctx, ListOptions{Page: Page{Page: page, Limit: MaxPageLimit}})
		if err != nil {
			t.Fatalf("DirectoryChildren(page=%d) error = %v", page, err)
		}
		if len(list.Files) != 0 || list.HasMore {
			t.Errorf("DirectoryChildren(page=%d) = %d files, hasMore %v", page, len(list.Files), list.HasMore)
		}
	}
}

func TestRandomImageIgnoresOtherMedia(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	seed(t, db,
		file("song.mp3", 1, "audio/mpeg"),
		file("clip.mp4", 1, "video/mp4"),
		file("notes.txt", 1, "text/plain"),
	)

	img, err := db.RandomImage(context.Background(), "")
	if err != nil || img != nil {
		t.Fatalf("RandomImage() = %v, %v; want nil, nil", img, err)
	}

	seed(t, db, file("only.gif", 1, "image/gif"))
	for i := 0; i < 5; i++ {
		img, err = db.RandomImage(context.Background(), "")
		if err != nil {
			t.Fatal(err)
		}
		if img == nil || img.Path != "only.gif" {
			t.Fatalf("RandomImage() = %v, want only.gif", img)
		}
	}
}
