package handlers

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"fileindex/internal/database"
	"fileindex/internal/indexer"
	"fileindex/internal/logging"
	"fileindex/internal/streaming"
)

// maxSaveBody bounds POST /api/index/entries request bodies.
const maxSaveBody = 32 << 20

// GetStats returns counts and build state.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSONStatus(w, http.StatusOK, h.index.Stats(r.Context()))
}

// Search finds entries whose name contains q. Search is recursive unless
// recursive=false.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	mt, ok := parseMediaType(r)
	if !ok {
		writeJSONError(w, "unknown media type", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	res := h.index.Search(r.Context(), database.SearchOptions{
		Query:     q.Get("q"),
		Directory: q.Get("dir"),
		Recursive: queryBool(r, "recursive", true),
		Type:      mt,
		Page:      parsePage(r),
	})
	writeJSONStatus(w, http.StatusOK, res)
}

// ListChildren lists one directory level. covers=true adds the first image
// under each subdirectory.
func (h *Handlers) ListChildren(w http.ResponseWriter, r *http.Request) {
	res := h.index.DirectoryChildren(r.Context(), database.ListOptions{
		Directory:    r.URL.Query().Get("dir"),
		IncludeCover: queryBool(r, "covers", false),
		Page:         parsePage(r),
	})
	writeJSONStatus(w, http.StatusOK, res)
}

// FindMedia lists files of the media class named by type.
func (h *Handlers) FindMedia(w http.ResponseWriter, r *http.Request) {
	mt, ok := parseMediaType(r)
	if !ok || mt == "" {
		writeJSONError(w, "type must be image, audio, or video", http.StatusBadRequest)
		return
	}

	res := h.index.FindMedia(r.Context(), database.MediaOptions{
		Directory: r.URL.Query().Get("dir"),
		MediaType: mt,
		Recursive: queryBool(r, "recursive", true),
		Page:      parsePage(r),
	})
	writeJSONStatus(w, http.StatusOK, res)
}

// RandomImage returns one random image under dir.
func (h *Handlers) RandomImage(w http.ResponseWriter, r *http.Request) {
	rec := h.index.RandomImage(r.Context(), r.URL.Query().Get("dir"))
	if rec == nil {
		writeJSONError(w, "no image found", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSONStatus(w, http.StatusOK, rec)
}

// GetEntry returns the stored row for path.
func (h *Handlers) GetEntry(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if database.NormalizePath(path) == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}
	rec := h.index.GetFile(r.Context(), path)
	if rec == nil {
		writeJSONError(w, "not indexed", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, http.StatusOK, rec)
}

// TriggerBuild starts a full rebuild in the background.
func (h *Handlers) TriggerBuild(w http.ResponseWriter, _ *http.Request) {
	err := h.index.TriggerBuild(h.baseCtx)
	switch {
	case errors.Is(err, indexer.ErrBuildInProgress):
		writeJSONError(w, err.Error(), http.StatusConflict)
	case err != nil:
		logging.Error("Failed to start index build: %v", err)
		writeJSONError(w, "failed to start build", http.StatusInternalServerError)
	default:
		writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started"})
	}
}

// SaveEntries upserts the JSON array of entries in the request body.
func (h *Handlers) SaveEntries(w http.ResponseWriter, r *http.Request) {
	var entries []database.FileRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSaveBody)).Decode(&entries); err != nil {
		writeJSONError(w, "body must be a JSON array of entries", http.StatusBadRequest)
		return
	}
	saved := h.index.SaveBatch(r.Context(), entries)
	writeJSONStatus(w, http.StatusOK, map[string]int{"saved": saved, "received": len(entries)})
}

// RecordEntry indexes the live filesystem entry at path, including the
// whole subtree of a directory.
func (h *Handlers) RecordEntry(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	err := h.index.RecordPath(r.Context(), path)
	switch {
	case errors.Is(err, database.ErrEmptyPath):
		writeJSONError(w, "path is required", http.StatusBadRequest)
	case errors.Is(err, fs.ErrNotExist):
		writeJSONError(w, "path does not exist", http.StatusNotFound)
	case err != nil:
		logging.Error("Recording %q failed: %v", path, err)
		writeJSONError(w, "failed to record path", http.StatusInternalServerError)
	default:
		writeJSONStatus(w, http.StatusOK, h.index.GetFile(r.Context(), path))
	}
}

// DeleteEntry removes path and, for a directory, everything beneath it.
func (h *Handlers) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if database.NormalizePath(path) == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}
	if !h.index.Delete(r.Context(), path) {
		writeJSONError(w, "not indexed", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Export streams every entry under dir as newline-delimited JSON, in path
// order. The response is committed before the first row, so a failure
// midway shows up as a truncated body.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dir := r.URL.Query().Get("dir")

	n, err := streaming.WriteNDJSON(ctx, w, streaming.DefaultConfig(), func(emit func(any) error) error {
		return h.index.Export(ctx, dir, func(rec *database.FileRecord) error {
			return emit(rec)
		})
	})
	switch {
	case err == nil:
		logging.Debug("Exported %d entries under %q", n, dir)
	case errors.Is(err, streaming.ErrClientGone):
		logging.Debug("Export of %q stopped after %d entries: client disconnected", dir, n)
	default:
		logging.Warn("Export of %q failed after %d entries: %v", dir, n, err)
	}
}
