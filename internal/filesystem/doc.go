/*
Package filesystem wraps the filesystem calls made by the indexer with retry
logic for NFS stale file handle errors.

# Purpose

Index roots are frequently network mounts. When the server side changes under
a client, stat and readdir calls can fail with ESTALE even though the entry is
still present. These helpers retry that one error with exponential backoff and
fail fast on everything else.

# Usage

	entries, err := filesystem.ReadDirWithRetry(dir, filesystem.DefaultRetryConfig())
	info, err := filesystem.LstatWithRetry(path, filesystem.DefaultRetryConfig())

StatWithRetry and OpenWithRetry follow the same shape.

# Retry Behavior

Defaults: 3 retries, 50ms initial backoff doubling up to 500ms. Only ESTALE
triggers a retry.

# Metrics

Each call reports its duration, volume and outcome to the package [Observer].
The metrics package supplies the implementation at startup through
[SetObserver]; when none is set the calls are not recorded. Volumes are
labelled by [VolumeResolver] using longest-prefix matching.
*/
package filesystem
