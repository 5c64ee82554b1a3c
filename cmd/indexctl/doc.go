// Command indexctl runs index operations against the same configuration as
// the server, without starting it.
//
// Usage:
//
//	indexctl <command> [args]
//
// Commands:
//
//	build               Clear the index and rebuild it from MEDIA_DIR. On a
//	                    terminal, progress is redrawn in place.
//	stats               Print counts and build state as JSON.
//	search <q> [dir]    Find entries whose name contains q.
//	children [dir]      List one directory level with cover images.
//	media <type> [dir]  List image, audio, or video files recursively.
//	random [dir]        Print one random image under dir.
//	export [dir]        Print every entry under dir, one JSON object per line.
//	record <path>       Index the live entry at path and, for a directory,
//	                    its subtree. Use after moving or adding files.
//	delete <path>       Remove path and everything beneath it.
//
// Configuration is read by [startup.Load]: MEDIA_DIR, DATABASE_DIR, the
// INDEX_* variables, and an optional INDEX_CONFIG file.
package main
