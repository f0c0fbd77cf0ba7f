package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"asset-library/internal/assetinfo"
	"asset-library/internal/inflect"
)

// Asset is one folder in the library: a texture/material/model bundle
// plus its JSON metadata sidecar.
//
// The id is always the lowercased folder name and is stable unless the
// asset is explicitly renamed. Derived search fields live in an
// atomically swapped snapshot so the search engine can read them without
// taking any lock; they are only ever replaced wholesale under the
// asset's own mutex.
type Asset struct {
	id   string
	path string

	// mu serializes metadata writes for this asset, so two different
	// assets can update their sidecars concurrently without contending
	// on the library-wide lock.
	mu    sync.Mutex
	state atomic.Pointer[assetState]
}

// assetState is the immutable snapshot behind an Asset's read methods.
type assetState struct {
	info       *assetinfo.Info
	searchName string
	searchSet  map[string]struct{}
	hasIcon    bool
}

// newAsset builds an Asset for an on-disk folder with an already-loaded
// info record.
func newAsset(path string, inf *assetinfo.Info) *Asset {
	a := &Asset{
		id:   strings.ToLower(filepath.Base(path)),
		path: path,
	}
	a.replaceState(inf)
	return a
}

// ID returns the asset's lowercase slug id.
func (a *Asset) ID() string { return a.id }

// Path returns the asset's absolute folder path.
func (a *Asset) Path() string { return a.path }

// InfoPath returns the path of the JSON metadata sidecar.
func (a *Asset) InfoPath() string { return filepath.Join(a.path, assetinfo.InfoFileName) }

// IconPath returns the path of the icon image.
func (a *Asset) IconPath() string { return filepath.Join(a.path, assetinfo.IconFileName) }

// GalleryDir returns the gallery images subfolder path.
func (a *Asset) GalleryDir() string { return filepath.Join(a.path, assetinfo.GalleryDirName) }

// ArchiveDir returns the extracted-archive originals subfolder path.
func (a *Asset) ArchiveDir() string { return filepath.Join(a.path, assetinfo.ArchiveDirName) }

// ExtraDir returns the auxiliary downloads subfolder path.
func (a *Asset) ExtraDir() string { return filepath.Join(a.path, assetinfo.ExtraDirName) }

// Info returns the current metadata snapshot. Callers must treat the
// returned record as read-only; mutations go through UpdateInfo.
func (a *Asset) Info() *assetinfo.Info { return a.state.Load().info }

// Name returns the display name.
func (a *Asset) Name() string { return a.Info().Name }

// URL returns the source url field.
func (a *Asset) URL() string { return a.Info().URL }

// Author returns the author field.
func (a *Asset) Author() string { return a.Info().Author }

// Ctime returns the creation timestamp (Unix seconds).
func (a *Asset) Ctime() float64 { return a.Info().Ctime }

// Mtime returns the last folder-scan timestamp backing system tags.
func (a *Asset) Mtime() float64 { return a.Info().SystemTagsMtime }

// TagCount returns the number of user tags.
func (a *Asset) TagCount() int { return len(a.Info().Tags) }

// HasIcon reports whether the icon file existed at the last state
// refresh.
func (a *Asset) HasIcon() bool { return a.state.Load().hasIcon }

// SearchName returns the raw concatenation of the searchable fields.
func (a *Asset) SearchName() string { return a.state.Load().searchName }

// SearchSet returns the lowercased, inflected token set of the
// searchable fields.
func (a *Asset) SearchSet() map[string]struct{} { return a.state.Load().searchSet }

// Files returns the non-reserved files directly inside the asset folder.
func (a *Asset) Files() ([]string, error) {
	entries, err := os.ReadDir(a.path)
	if err != nil {
		return nil, fmt.Errorf("reading asset folder %s: %w", a.path, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || assetinfo.IsReservedName(e.Name()) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(a.path, e.Name()))
	}
	return files, nil
}

// Images returns the non-reserved bitmap files directly inside the asset
// folder.
func (a *Asset) Images() ([]string, error) {
	files, err := a.Files()
	if err != nil {
		return nil, err
	}
	var images []string
	for _, f := range files {
		if assetinfo.ImageExtensions[strings.ToLower(filepath.Ext(f))] {
			images = append(images, f)
		}
	}
	return images, nil
}

// GalleryImages returns the bitmap files inside the gallery subfolder.
func (a *Asset) GalleryImages() []string {
	entries, err := os.ReadDir(a.GalleryDir())
	if err != nil {
		return nil
	}
	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if assetinfo.ImageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			images = append(images, filepath.Join(a.GalleryDir(), e.Name()))
		}
	}
	return images
}

// UpdateInfo merge-applies patch to the asset's metadata, persists the
// sidecar and re-derives the search fields.
func (a *Asset) UpdateInfo(patch map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	record := a.Info().ToMap()
	assetinfo.MergeUpdate(record, patch)
	assetinfo.Standardize(record)
	inf := assetinfo.FromMap(record)

	if err := assetinfo.Save(a.InfoPath(), inf); err != nil {
		return err
	}
	a.replaceState(inf)
	return nil
}

// SetSystemTags replaces the derived system tags outright (they are not
// merged: a recomputation is authoritative, so a stale tag like "zip"
// disappears after its archive is extracted) and persists the sidecar.
func (a *Asset) SetSystemTags(tags []string, mtime float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	record := a.Info().ToMap()
	inf := assetinfo.FromMap(record)
	inf.SystemTags = tags
	inf.SystemTagsMtime = mtime

	if err := assetinfo.Save(a.InfoPath(), inf); err != nil {
		return err
	}
	a.replaceState(inf)
	return nil
}

// RefreshState re-derives the search fields and icon flag from the
// current info record. Called after external changes to the folder.
func (a *Asset) RefreshState() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replaceState(a.Info())
}

// replaceState installs a new immutable snapshot. Callers hold a.mu
// except during construction.
func (a *Asset) replaceState(inf *assetinfo.Info) {
	_, statErr := os.Stat(filepath.Join(a.path, assetinfo.IconFileName))
	a.state.Store(&assetState{
		info:       inf,
		searchName: buildSearchName(inf),
		searchSet:  buildSearchSet(inf),
		hasIcon:    statErr == nil,
	})
}

// buildSearchName concatenates the searchable fields, case preserved.
func buildSearchName(inf *assetinfo.Info) string {
	parts := []string{inf.Name, inf.URL, inf.Author}
	parts = append(parts, inf.Tags...)
	parts = append(parts, inf.SystemTags...)
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// buildSearchSet lowercases and tokenizes the searchable fields and
// widens the set with singular/plural variants of every token.
func buildSearchSet(inf *assetinfo.Info) map[string]struct{} {
	set := map[string]struct{}{}

	addToken := func(tok string) {
		tok = strings.ToLower(tok)
		if tok == "" {
			return
		}
		for _, v := range inflect.Variants(tok) {
			set[v] = struct{}{}
		}
	}

	for _, field := range []string{inf.Name, inf.URL, inf.Author} {
		for _, tok := range strings.Fields(field) {
			addToken(tok)
		}
	}
	for _, tag := range inf.Tags {
		addToken(tag)
	}
	for _, tag := range inf.SystemTags {
		addToken(tag)
	}
	return set
}
