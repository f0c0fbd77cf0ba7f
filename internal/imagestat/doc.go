// Package imagestat computes derived numeric statistics for bitmap
// files: dimensions, channel layout, per-channel min/max, dominant color
// and semantic channel roles. Results are cached by content hash in the
// stat cache.
package imagestat
