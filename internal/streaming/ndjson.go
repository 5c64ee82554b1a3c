package streaming

import (
	"context"
	"encoding/json"
	"net/http"

	"fileindex/internal/logging"
)

// ContentType is the media type of newline-delimited JSON.
const ContentType = "application/x-ndjson"

// Encoder writes one JSON document per line.
type Encoder struct {
	tw      *TimeoutWriter
	enc     *json.Encoder
	every   int
	pending int
	count   int64
}

// NewEncoder flushes tw after every `every` documents. Values below one
// flush after each document.
func NewEncoder(tw *TimeoutWriter, every int) *Encoder {
	return &Encoder{tw: tw, enc: json.NewEncoder(tw), every: max(every, 1)}
}

// Encode writes v followed by a newline.
func (e *Encoder) Encode(v any) error {
	if err := e.enc.Encode(v); err != nil {
		return err
	}
	e.count++
	e.pending++
	if e.pending >= e.every {
		e.Flush()
	}
	return nil
}

// Flush sends pending documents to the client.
func (e *Encoder) Flush() {
	if e.pending > 0 {
		e.tw.Flush()
		e.pending = 0
	}
}

// Count returns how many documents were written.
func (e *Encoder) Count() int64 {
	return e.count
}

// WriteNDJSON streams the documents produce emits as NDJSON. Headers are
// sent before the first document, so a failure midway can only truncate the
// body; it is returned for logging.
func WriteNDJSON(ctx context.Context, w http.ResponseWriter, config Config, produce func(emit func(any) error) error) (int64, error) {
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	tw := NewTimeoutWriter(ctx, w, config)
	defer tw.Close()

	enc := NewEncoder(tw, config.FlushEvery)
	err := produce(enc.Encode)
	enc.Flush()

	bytesWritten, duration := tw.Stats()
	logging.Debug("Stream completed: %d records, %d bytes in %v", enc.Count(), bytesWritten, duration)
	return enc.Count(), err
}
