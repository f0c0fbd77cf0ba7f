// Package contenthash produces short, stable, size-aware digests for
// large binary files without reading them in full. Digests are used as
// cache and database keys for derived image statistics.
package contenthash
