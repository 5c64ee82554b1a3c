package indexer

import (
	"sync/atomic"
	"time"

	"fileindex/internal/database"
)

// BuildProgress is a snapshot of the current or last build.
type BuildProgress struct {
	// Total is the number of files found by the counting pass.
	Total       int64     `json:"total"`
	Processed   int64     `json:"processed"`
	Directories int64     `json:"directories"`
	Errors      int64     `json:"errors"`
	StartTime   time.Time `json:"startTime,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
	// Percent is processed files over total files. Directories count
	// toward neither side.
	Percent float64 `json:"percent"`
}

// progressTracker is written by build workers and read by anyone. Every
// field is an atomic so Snapshot never blocks a build.
type progressTracker struct {
	total       atomic.Int64
	processed   atomic.Int64
	directories atomic.Int64
	errors      atomic.Int64
	startTime   atomic.Int64
	lastUpdated atomic.Int64
}

func (p *progressTracker) reset(start time.Time) {
	p.total.Store(0)
	p.processed.Store(0)
	p.directories.Store(0)
	p.errors.Store(0)
	p.startTime.Store(start.UnixNano())
	p.lastUpdated.Store(start.UnixNano())
}

func (p *progressTracker) touch() {
	p.lastUpdated.Store(time.Now().UnixNano())
}

func (p *progressTracker) setTotal(n int64) {
	p.total.Store(n)
	p.touch()
}

// addBatch counts the files and directories in a persisted or collected
// batch.
func (p *progressTracker) addBatch(batch []database.FileRecord) {
	var files, dirs int64
	for i := range batch {
		if batch[i].IsDirectory {
			dirs++
		} else {
			files++
		}
	}
	p.processed.Add(files)
	p.directories.Add(dirs)
	p.touch()
}

func (p *progressTracker) addError() {
	p.errors.Add(1)
	p.touch()
}

// Snapshot returns the current progress.
func (p *progressTracker) Snapshot() BuildProgress {
	snap := BuildProgress{
		Total:       p.total.Load(),
		Processed:   p.processed.Load(),
		Directories: p.directories.Load(),
		Errors:      p.errors.Load(),
	}
	if ns := p.startTime.Load(); ns != 0 {
		snap.StartTime = time.Unix(0, ns)
	}
	if ns := p.lastUpdated.Load(); ns != 0 {
		snap.LastUpdated = time.Unix(0, ns)
	}
	if snap.Total > 0 {
		snap.Percent = min(100, float64(snap.Processed)/float64(snap.Total)*100)
	}
	return snap
}
