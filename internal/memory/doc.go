// Package memory configures the Go runtime memory limit for containers and
// reports how much memory the index service may use.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main, before significant allocations:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// Environment variables:
//
//   - GOMEMLIMIT: standard Go variable; takes precedence when set.
//   - MEMORY_LIMIT: container memory limit in bytes, typically from the
//     Kubernetes Downward API.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap (default 0.85).
//     The rest is left for SQLite's page cache and other cgo allocations.
//
// Kubernetes example:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// # Available memory
//
// [Available] feeds worker-count sizing. It returns the container limit,
// else an explicit GOMEMLIMIT, else total physical memory (sysinfo on Linux,
// unknown elsewhere).
//
// # Backpressure
//
// [Monitor] samples heap usage while a build runs. Traversal workers call
// [Monitor.Wait] before reading each directory; it blocks while usage is above
// the critical water mark and resumes once usage falls below the high water
// mark.
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
package memory
