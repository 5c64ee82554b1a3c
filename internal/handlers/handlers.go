package handlers

import (
	"context"

	"fileindex/internal/database"
	"fileindex/internal/indexer"
)

// Index is the part of *indexer.Engine the HTTP layer uses.
type Index interface {
	Root() string
	Stats(ctx context.Context) indexer.Stats
	Health(ctx context.Context) indexer.HealthStatus
	TriggerBuild(ctx context.Context) error

	Search(ctx context.Context, opts database.SearchOptions) *database.SearchResult
	DirectoryChildren(ctx context.Context, opts database.ListOptions) *database.FileList
	FindMedia(ctx context.Context, opts database.MediaOptions) *database.FileList
	RandomImage(ctx context.Context, dir string) *database.FileRecord
	GetFile(ctx context.Context, path string) *database.FileRecord
	Export(ctx context.Context, dir string, fn func(*database.FileRecord) error) error

	SaveBatch(ctx context.Context, entries []database.FileRecord) int
	Delete(ctx context.Context, path string) bool
	RecordPath(ctx context.Context, relPath string) error
}

// Handlers serves the index API.
type Handlers struct {
	index Index
	// baseCtx outlives requests; background builds run under it.
	baseCtx context.Context
}

// New creates handlers for idx. Builds triggered over HTTP are cancelled
// with ctx.
func New(ctx context.Context, idx Index) *Handlers {
	return &Handlers{index: idx, baseCtx: ctx}
}
