/*
Package filesystem provides resilient filesystem operations with automatic retry
logic for NFS stale file handle errors.

Dataset directories are commonly NFS mounts, and files that are replaced from
another host can briefly return ESTALE (errno 116) when accessed mid-change.
This package wraps the read operations used on the dataset volume (stat, open,
read file, read dir) with exponential-backoff retries for exactly that error.
All other errors fail immediately without retry.

Basic usage:

	info, err := filesystem.StatWithRetry("/dataset/cat.jpg", filesystem.DefaultRetryConfig())

Defaults: 3 retries, 50ms initial backoff, 500ms cap. For successful operations
the overhead is a single extra function call.
*/
package filesystem
