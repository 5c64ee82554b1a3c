package logging

import "time"

// AccessEntry describes one served HTTP request.
type AccessEntry struct {
	ClientIP  string
	Method    string
	Path      string
	Query     string
	Status    int
	Bytes     int64
	Duration  time.Duration
	UserAgent string
}

// Access writes an access log line regardless of level. Fields are emitted
// as structured values, so they never need escaping.
func Access(e AccessEntry) {
	l := get()
	ev := l.Log().
		Str("type", "access").
		Str("client_ip", e.ClientIP).
		Str("method", e.Method).
		Str("path", e.Path).
		Int("status", e.Status).
		Int64("bytes", e.Bytes).
		Dur("duration", e.Duration)
	if e.Query != "" {
		ev = ev.Str("query", e.Query)
	}
	if e.UserAgent != "" {
		ev = ev.Str("user_agent", e.UserAgent)
	}
	ev.Msgf("%s %s %d", e.Method, e.Path, e.Status)
}
