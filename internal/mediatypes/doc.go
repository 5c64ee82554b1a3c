// Package mediatypes resolves MIME types for indexed files and defines the
// shared vocabulary used by the query layer: media classes and sort keys.
//
// # MIME Detection
//
// [Detector.Detect] resolves a file's MIME type from its lowercase extension:
// the built-in [MimeTypes] table first, then the platform mime registry.
// Files without an extension are sniffed from their first 512 bytes. Unknown
// types fall back to [DefaultMimeType].
//
// Extension results are kept in a [MimeCache] shared by every build worker:
//
//	cache := mediatypes.NewMimeCache(mediatypes.DefaultCacheSize)
//	detector := mediatypes.NewDetector(cache)
//	mimeType := detector.Detect("/media/photos/IMG_0001.JPG") // "image/jpeg"
//
// The cache is bounded. Lookups do not refresh entries, so eviction removes
// the oldest insertion. Builds call [MimeCache.Purge] before walking.
//
// # Media Classes
//
// Type filters accept only image, audio and video:
//
//	if mt, ok := mediatypes.ParseMediaType(q.Get("type")); ok {
//	    pattern := mt.MimePrefix() + "%"
//	}
//
// # Sorting
//
// [ParseSortField] and [ParseSortOrder] map user input onto the allow-listed
// values that may be interpolated into ORDER BY.
package mediatypes
