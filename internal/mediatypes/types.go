package mediatypes

import "strings"

// MediaType is a top-level MIME class accepted by type filters.
type MediaType string

const (
	// MediaImage matches image/* rows.
	MediaImage MediaType = "image"
	// MediaAudio matches audio/* rows.
	MediaAudio MediaType = "audio"
	// MediaVideo matches video/* rows.
	MediaVideo MediaType = "video"
)

// ParseMediaType validates a type filter. Anything outside the allow-list,
// including the empty string, reports false.
func ParseMediaType(s string) (MediaType, bool) {
	switch MediaType(strings.ToLower(strings.TrimSpace(s))) {
	case MediaImage:
		return MediaImage, true
	case MediaAudio:
		return MediaAudio, true
	case MediaVideo:
		return MediaVideo, true
	}
	return "", false
}

// MimePrefix returns the LIKE pattern prefix for the class, e.g. "image/".
func (m MediaType) MimePrefix() string {
	return string(m) + "/"
}

// SortField specifies which column to sort by.
type SortField string

// SortOrder specifies the direction of sorting.
type SortOrder string

const (
	SortByName  SortField = "name"
	SortByPath  SortField = "path"
	SortBySize  SortField = "size"
	SortByMtime SortField = "mtime"

	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortField maps user input onto the sort allow-list. Unknown values
// fall back to name, so the result is always safe to put in ORDER BY.
func ParseSortField(s string) SortField {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortByName, SortByPath, SortBySize, SortByMtime:
		return f
	}
	return SortByName
}

// ParseSortOrder maps user input onto asc/desc, defaulting to asc.
func ParseSortOrder(s string) SortOrder {
	if SortOrder(strings.ToLower(strings.TrimSpace(s))) == SortDesc {
		return SortDesc
	}
	return SortAsc
}

const (
	// DirectoryMimeType is stored in the mimeType column for directories.
	DirectoryMimeType = "directory"
	// DefaultMimeType is used when nothing better can be detected.
	DefaultMimeType = "application/octet-stream"
)

// MimeTypes maps lowercase file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".avif": "image/avif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",

	// Audio
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wma":  "audio/x-ms-wma",

	// Playlists
	".wpl":  "application/vnd.ms-wpl",
	".m3u":  "audio/x-mpegurl",
	".m3u8": "application/vnd.apple.mpegurl",

	// Documents
	".txt":  "text/plain",
	".md":   "text/markdown",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".csv":  "text/csv",
	".json": "application/json",
}

// LookupExtension returns the MIME type for a lowercase extension with the
// leading dot from the built-in table only.
func LookupExtension(ext string) (string, bool) {
	m, ok := MimeTypes[ext]
	return m, ok
}

// IsMediaMime reports whether a MIME type belongs to one of the media classes.
func IsMediaMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, MediaImage.MimePrefix()) ||
		strings.HasPrefix(mimeType, MediaAudio.MimePrefix()) ||
		strings.HasPrefix(mimeType, MediaVideo.MimePrefix())
}
