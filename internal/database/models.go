package database

import (
	"math"
	"path"
	"strings"
	"time"

	"fileindex/internal/mediatypes"
)

// TimeLayout is the persisted mtime format. It is fixed width and UTC, so
// comparing the text compares the instants.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a persisted timestamp, accepting RFC3339 as well.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// FileRecord is one indexed filesystem entry.
type FileRecord struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mtime"`
	MimeType    string    `json:"mimeType"`
	IsDirectory bool      `json:"isDirectory"`
	// Cover is the first image under a directory. Only set by
	// DirectoryChildren with covers requested.
	Cover string `json:"cover,omitempty"`
}

// Page selects one page of a list query.
type Page struct {
	Page      int
	Limit     int
	SortBy    mediatypes.SortField
	SortOrder mediatypes.SortOrder
}

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000

	// maxPage keeps (Page-1)*Limit from overflowing for any clamped limit.
	maxPage = math.MaxInt / MaxPageLimit
)

// normalize clamps pagination and maps sort input onto the allow-list.
func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > maxPage {
		p.Page = maxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	p.SortBy = mediatypes.ParseSortField(string(p.SortBy))
	p.SortOrder = mediatypes.ParseSortOrder(string(p.SortOrder))
	return p
}

func (p Page) offset() int {
	return (p.Page - 1) * p.Limit
}

// SearchOptions configures Search.
type SearchOptions struct {
	Query     string
	Directory string
	Recursive bool
	// Type restricts results to one media class when non-empty.
	Type mediatypes.MediaType
	Page
}

// ListOptions configures DirectoryChildren.
type ListOptions struct {
	Directory    string
	IncludeCover bool
	Page
}

// MediaOptions configures FindMedia.
type MediaOptions struct {
	Directory string
	MediaType mediatypes.MediaType
	Recursive bool
	Page
}

// SearchResult is a page of Search results.
type SearchResult struct {
	Results []FileRecord `json:"results"`
	Total   int          `json:"total"`
	HasMore bool         `json:"hasMore"`
}

// FileList is a page of DirectoryChildren or FindMedia results.
type FileList struct {
	Files   []FileRecord `json:"files"`
	Total   int          `json:"total"`
	HasMore bool         `json:"hasMore"`
}

// IndexCounts holds row counts by kind.
type IndexCounts struct {
	Files       int `json:"files"`
	Directories int `json:"directories"`
}

// NormalizePath converts a user supplied path into the stored form: cleaned,
// no leading or trailing slash, "" for the root.
func NormalizePath(p string) string {
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}
