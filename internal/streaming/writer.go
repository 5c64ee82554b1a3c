package streaming

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"fileindex/internal/logging"
)

var (
	// ErrWriteTimeout is returned when one write, or the whole stream,
	// exceeds its time budget. Usually the client is reading too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone is returned once the request context is cancelled.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamClosed is returned by writes after Close or an idle timeout.
	ErrStreamClosed = errors.New("stream closed")
)

// Config bounds how long a stream may stall.
type Config struct {
	// WriteTimeout caps a single write.
	WriteTimeout time.Duration
	// IdleTimeout caps the gap between successful writes.
	IdleTimeout time.Duration
	// MaxDuration caps the whole stream. Zero means unlimited.
	MaxDuration time.Duration
	// FlushEvery is the number of records between flushes.
	FlushEvery int
}

// DefaultConfig returns the limits used by the export endpoint.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		FlushEvery:   500,
	}
}

// TimeoutWriter wraps an http.ResponseWriter so a stalled client cannot pin
// a handler, and with it a database cursor, forever.
type TimeoutWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
	cancel  context.CancelFunc
	config  Config

	mu           sync.Mutex
	startTime    time.Time
	lastWrite    time.Time
	bytesWritten int64
	closed       bool
}

// NewTimeoutWriter starts the idle checker; call Close when done.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config Config) *TimeoutWriter {
	writerCtx, cancel := context.WithCancel(ctx)
	now := time.Now()

	tw := &TimeoutWriter{
		w:         w,
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		startTime: now,
		lastWrite: now,
	}
	if flusher, ok := w.(http.Flusher); ok {
		tw.flusher = flusher
	}

	go tw.idleChecker()
	return tw
}

// Write implements io.Writer.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamClosed
	}

	if err := tw.ctx.Err(); err != nil {
		return 0, tw.contextError()
	}
	if tw.config.MaxDuration > 0 && time.Since(tw.startTime) > tw.config.MaxDuration {
		return 0, ErrWriteTimeout
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := tw.w.Write(p)
		done <- result{n, err}
	}()

	var timeout <-chan time.Time
	if tw.config.WriteTimeout > 0 {
		timer := time.NewTimer(tw.config.WriteTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-done:
		if res.err == nil {
			tw.mu.Lock()
			tw.lastWrite = time.Now()
			tw.bytesWritten += int64(res.n)
			tw.mu.Unlock()
		}
		return res.n, res.err
	case <-timeout:
		tw.mu.Lock()
		tw.closed = true
		tw.mu.Unlock()
		tw.cancel()
		return 0, ErrWriteTimeout
	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

// Flush pushes buffered bytes to the client when the writer supports it.
func (tw *TimeoutWriter) Flush() {
	if tw.flusher != nil && tw.ctx.Err() == nil {
		tw.flusher.Flush()
	}
}

func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			tw.mu.Unlock()

			if closed {
				return
			}
			if idle > tw.config.IdleTimeout {
				logging.Warn("Stream idle timeout exceeded: %v", idle)
				tw.mu.Lock()
				tw.closed = true
				tw.mu.Unlock()
				tw.cancel()
				return
			}
		case <-tw.ctx.Done():
			return
		}
	}
}

// contextError distinguishes a vanished client from our own cancellation.
func (tw *TimeoutWriter) contextError() error {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return ErrStreamClosed
	}
	return ErrClientGone
}

// Close stops the idle checker. It is safe to call more than once.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if !tw.closed {
		tw.closed = true
		tw.cancel()
	}
	return nil
}

// Stats returns bytes written and elapsed time.
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.startTime)
}
