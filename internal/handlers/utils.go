package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"fileindex/internal/database"
	"fileindex/internal/logging"
	"fileindex/internal/mediatypes"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are logged; the status line is already sent.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, map[string]string{"error": message})
}

// queryBool reads a boolean query parameter, falling back to def when it is
// absent or malformed.
func queryBool(r *http.Request, key string, def bool) bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

// parsePage reads page, limit, sortBy, and sortOrder; sort and order are
// accepted as short aliases. Out of range values are clamped by the
// database layer.
func parsePage(r *http.Request) database.Page {
	return database.Page{
		Page:      queryInt(r, "page"),
		Limit:     queryInt(r, "limit"),
		SortBy:    mediatypes.ParseSortField(firstQuery(r, "sortBy", "sort")),
		SortOrder: mediatypes.ParseSortOrder(firstQuery(r, "sortOrder", "order")),
	}
}

// firstQuery returns the value of the first key present in the query.
func firstQuery(r *http.Request, keys ...string) string {
	q := r.URL.Query()
	for _, k := range keys {
		if q.Has(k) {
			return q.Get(k)
		}
	}
	return ""
}

// parseMediaType reads the type parameter. ok is false when the value is
// present but not a known media class.
func parseMediaType(r *http.Request) (mt mediatypes.MediaType, ok bool) {
	v := strings.TrimSpace(r.URL.Query().Get("type"))
	if v == "" {
		return "", true
	}
	return mediatypes.ParseMediaType(v)
}
