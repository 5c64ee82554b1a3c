package mediatypes

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"fileindex/internal/filesystem"
	"fileindex/internal/logging"
)

// sniffLen is the number of bytes http.DetectContentType considers.
const sniffLen = 512

// Detector resolves MIME types for files, caching results per extension.
type Detector struct {
	cache *MimeCache
	retry filesystem.RetryConfig
}

// NewDetector creates a detector backed by cache. A nil cache disables
// caching.
func NewDetector(cache *MimeCache) *Detector {
	return &Detector{
		cache: cache,
		retry: filesystem.DefaultRetryConfig(),
	}
}

// Cache returns the detector's extension cache, which may be nil.
func (d *Detector) Cache() *MimeCache {
	return d.cache
}

// Detect returns the MIME type for the file at fullPath.
//
// Files with an extension are resolved from the built-in table, then the
// platform registry, and cached by extension. Extensionless files are
// sniffed from their first bytes and never cached.
func (d *Detector) Detect(fullPath string) string {
	ext := strings.ToLower(filepath.Ext(fullPath))
	if ext == "" || ext == "." {
		return d.sniff(fullPath)
	}

	if d.cache != nil {
		if mimeType, ok := d.cache.Get(ext); ok {
			return mimeType
		}
	}

	mimeType := ByExtension(ext)
	if d.cache != nil {
		d.cache.Set(ext, mimeType)
	}
	return mimeType
}

// ByExtension resolves a lowercase extension without touching the file.
func ByExtension(ext string) string {
	if mimeType, ok := LookupExtension(ext); ok {
		return mimeType
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return stripParams(mimeType)
	}
	return DefaultMimeType
}

func (d *Detector) sniff(fullPath string) string {
	f, err := filesystem.OpenWithRetry(fullPath, d.retry)
	if err != nil {
		logging.Debug("MIME sniff open failed for %s: %v", fullPath, err)
		return DefaultMimeType
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		logging.Debug("MIME sniff read failed for %s: %v", fullPath, err)
		return DefaultMimeType
	}
	if n == 0 {
		return DefaultMimeType
	}
	return stripParams(http.DetectContentType(buf[:n]))
}

// stripParams drops parameters such as "; charset=utf-8".
func stripParams(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		return strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}
