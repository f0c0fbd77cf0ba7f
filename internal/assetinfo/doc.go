// Package assetinfo reads and writes the per-asset JSON metadata sidecar
// (__info__.json) and derives system tags from folder contents.
//
// The sidecar must stay compatible with the legacy format it supersedes:
// unknown keys are preserved verbatim, writes go through an update-merge
// rather than a full overwrite, and corrupt files are renamed aside and
// replaced instead of failing the load.
package assetinfo
