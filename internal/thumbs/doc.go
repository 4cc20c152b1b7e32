// Package thumbs renders and caches item thumbnails. Rendering prefers
// libvips for its decode-time shrinking and falls back to pure-Go decoding
// when vips is unavailable. Rendered JPEGs live in a byte-bounded in-memory
// LRU keyed by item id and image fingerprint, so an image edited on disk
// naturally misses the cache instead of serving a stale thumbnail.
package thumbs
