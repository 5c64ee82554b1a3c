/*
Package workers sizes the index build's goroutine pools and provides the
per-worker concurrency gate.

# Worker count

[ForIndex] decides how many traversal workers a build uses. An explicit
count (from configuration or INDEX_WORKERS) wins. Otherwise GOMAXPROCS is
scaled by the memory reported by memory.Available:

	< 2 GiB   1 worker
	< 4 GiB   cores / 4
	< 8 GiB   cores / 2
	otherwise one per core

The result is at least 1 and at most [MaxIndexWorkers]. GOMAXPROCS already
honours container CPU limits, unlike runtime.NumCPU.

[Count] and [ForIO] are the general helpers; ForIO sizes the stat
concurrency when none is configured.

# Limiter

[Limiter] caps concurrent tasks. Each traversal worker owns one, so a
directory with tens of thousands of entries never has more than the limit
in stat calls at once:

	l := workers.NewLimiter(16)
	for i, e := range entries {
	    i, e := i, e
	    if err := l.Go(ctx, func() { results[i] = stat(e) }); err != nil {
	        break
	    }
	}
	err := l.Wait()

Slots are handed out first come, first served, so tasks start in submission
order. A panicking task releases its slot and surfaces from Wait as an error.
*/
package workers
