// Package indexer builds and maintains the file index for one root
// directory.
//
// A full build clears the store, counts the files under the root for
// progress reporting, then runs one Traversal per worker. Every worker
// lists every directory but only emits the entries whose path hashes to
// its own index, so workers never share state or talk to each other.
// Traversals run breadth-first or depth-first:
//
//	BFS: x.txt, a, a/a1.txt, b, b/b1.txt, a/sub, a/sub/s.txt
//	DFS: x.txt, a, a/a1.txt, a/sub, a/sub/s.txt, b, b/b1.txt
//
// Emitted batches are either saved as they arrive (immediate storage) or
// collected and saved in chunks once every worker finishes (batch storage).
//
// Engine wraps the store and builder behind the calls other components
// use. Queries and mutations through the Engine never fail loudly: errors
// are logged and turn into empty results or false.
//
// Hidden entries (prefixed with '.') are skipped when SkipHidden is set.
// Symlinked directories are recorded but never followed.
package indexer
