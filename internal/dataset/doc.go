// Package dataset owns the on-disk truth of a training dataset: a directory
// of image files, each paired with a caption/tag sidecar text file. The Store
// is the only component that reads or writes those files; everything else in
// the process (tag index, thumbnail cache, sessions) is a derived cache that
// is fed through the Store's change hook.
package dataset
