// Command dataset-lint validates a training dataset directory offline,
// without running the server.
//
// It checks every image/sidecar pair against the sidecar convention:
//   - images with no sidecar file
//   - orphan sidecars with no matching image
//   - tags that cannot survive a sidecar round trip (embedded commas, line breaks)
//   - duplicate tags within one sidecar
//
// Usage:
//
//	dataset-lint <command> [dir]
//
// Commands:
//
//	check   Report every problem found. Exits non-zero if the dataset
//	        has at least one error, which makes it usable as a CI gate
//	        before a training run.
//
//	stats   Print dataset summary statistics: item counts, caption
//	        coverage and the most frequent tags.
//
// The dataset directory is taken from the optional [dir] argument, falling
// back to the DATASET_DIR environment variable (default: /dataset).
//
// Environment:
//
//	DATASET_DIR - Path to the dataset directory (default: /dataset)
//	SIDECAR_EXT - Sidecar file extension (default: .txt)
package main
