/*
Package streaming writes long HTTP responses without letting a slow or
vanished client hold a handler open.

A [TimeoutWriter] wraps an http.ResponseWriter. Each write is bounded by
Config.WriteTimeout, the gap between writes by Config.IdleTimeout, and the
whole stream by Config.MaxDuration. Once any limit trips, the writer's
context is cancelled and later writes fail with [ErrWriteTimeout] or
[ErrStreamClosed]. When the request context ends first, writes fail with
[ErrClientGone].

[WriteNDJSON] is the usual entry point. It streams one JSON document per
line and flushes every Config.FlushEvery documents:

	n, err := streaming.WriteNDJSON(r.Context(), w, streaming.DefaultConfig(),
		func(emit func(any) error) error {
			return idx.Export(r.Context(), dir, func(rec *database.FileRecord) error {
				return emit(rec)
			})
		})

The status line is sent before the first document, so errors after that
point only truncate the body. Callers log them.
*/
package streaming
