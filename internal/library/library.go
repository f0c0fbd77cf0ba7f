package library

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"asset-library/internal/assetinfo"
	"asset-library/internal/metrics"
	"asset-library/internal/search"
)

// ErrNotFound is returned when an id is not present in the index.
var ErrNotFound = errors.New("library: asset not found")

// DefaultAssetsPerPage is the page size used when none is configured.
const DefaultAssetsPerPage = 20

// generatedIDLength is the length of allocated random ids.
const generatedIDLength = 11

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// AutoImporter ingests a dropped file or folder into the library,
// returning the id of the created asset. Implemented by the autoimport
// package; injected to keep the dependency one-way.
type AutoImporter interface {
	ImportPath(ctx context.Context, path string) (string, error)
}

// Library owns the collection of assets: an id map, a reverse path
// index for containment queries and the pagination state of the last
// search.
//
// One coarse mutex guards all shared state. Long operations (full
// scans, imports) are expected to run on background goroutines; the
// mutex makes each mutation atomic with respect to concurrent callers.
// Per-asset metadata writes additionally take the asset's own lock (see
// Asset), so different assets never contend there.
type Library struct {
	mu sync.Mutex

	libraryDir string
	autoDir    string

	assets map[string]*Asset // lowercased id → asset
	byPath map[string]*Asset // absolute folder path → asset

	assetsPerPage int
	currentPage   int
	numberOfPages int
	searchResult  []*Asset
	lastQuery     string

	classifier *assetinfo.Classifier
	renderer   IconRenderer
	fetcher    URLFetcher
	importer   AutoImporter

	scanWorkers  int
	lastScanTime time.Time
	ready        bool
}

// Options configures a Library.
type Options struct {
	// LibraryDir is the library root. When empty, the fallback config
	// file under DataDir is consulted.
	LibraryDir string

	// AutoDir is the auto-import staging folder. Same fallback as
	// LibraryDir.
	AutoDir string

	// DataDir holds the fallback config file.
	DataDir string

	// AssetsPerPage is the pagination page size.
	AssetsPerPage int

	// Renderer generates icons; nil falls back to PlaceholderRenderer.
	Renderer IconRenderer

	// Fetcher resolves URL metadata; nil disables URL lookups.
	Fetcher URLFetcher

	// ScanWorkers bounds the parallel scan worker pool; 0 picks a
	// default from the CPU count.
	ScanWorkers int
}

// New creates a Library. Directories missing from opts fall back to the
// sidecar config file; the library root is created if absent.
func New(opts Options) (*Library, error) {
	libraryDir, autoDir := opts.LibraryDir, opts.AutoDir
	if (libraryDir == "" || autoDir == "") && opts.DataDir != "" {
		cfg, err := LoadConfigFile(filepath.Join(opts.DataDir, ConfigFileName))
		if err != nil {
			return nil, err
		}
		if libraryDir == "" {
			libraryDir = cfg.LibraryDir
		}
		if autoDir == "" {
			autoDir = cfg.AutoDir
		}
	}
	if libraryDir == "" {
		return nil, errors.New("library: no library directory configured")
	}

	libraryDir, err := filepath.Abs(libraryDir)
	if err != nil {
		return nil, fmt.Errorf("resolving library dir: %w", err)
	}
	if err := os.MkdirAll(libraryDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating library dir: %w", err)
	}
	if autoDir != "" {
		if autoDir, err = filepath.Abs(autoDir); err != nil {
			return nil, fmt.Errorf("resolving auto-import dir: %w", err)
		}
	}

	perPage := opts.AssetsPerPage
	if perPage < 1 {
		perPage = DefaultAssetsPerPage
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = PlaceholderRenderer{}
	}

	return &Library{
		libraryDir:    libraryDir,
		autoDir:       autoDir,
		assets:        map[string]*Asset{},
		byPath:        map[string]*Asset{},
		assetsPerPage: perPage,
		currentPage:   1,
		numberOfPages: 1,
		classifier:    assetinfo.NewClassifier(),
		renderer:      renderer,
		fetcher:       opts.Fetcher,
		scanWorkers:   opts.ScanWorkers,
	}, nil
}

// LibraryDir returns the library root path.
func (l *Library) LibraryDir() string { return l.libraryDir }

// AutoDir returns the auto-import staging folder path.
func (l *Library) AutoDir() string { return l.autoDir }

// SetAutoImporter injects the auto-import implementation used by
// UpdateAuto.
func (l *Library) SetAutoImporter(importer AutoImporter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.importer = importer
}

// Fetcher returns the configured URL metadata fetcher, or nil.
func (l *Library) Fetcher() URLFetcher { return l.fetcher }

// Ready reports whether the initial library scan has completed.
func (l *Library) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// Len returns the number of assets in the index.
func (l *Library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.assets)
}

// GetAsset returns the asset with the given id, or nil.
func (l *Library) GetAsset(id string) *Asset {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.assets[strings.ToLower(id)]
}

// AllAssets returns a snapshot slice of every asset in the index.
func (l *Library) AllAssets() []*Asset {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.assetListLocked()
}

func (l *Library) assetListLocked() []*Asset {
	out := make([]*Asset, 0, len(l.assets))
	for _, a := range l.assets {
		out = append(out, a)
	}
	return out
}

// registerLocked inserts an asset into both indexes. Re-inserting under
// an existing id replaces the previous path-index entry rather than
// duplicating it.
func (l *Library) registerLocked(a *Asset) {
	if prev, ok := l.assets[a.id]; ok {
		delete(l.byPath, prev.path)
	}
	l.assets[a.id] = a
	l.byPath[a.path] = a
}

func (l *Library) unregisterLocked(id string) *Asset {
	a, ok := l.assets[id]
	if !ok {
		return nil
	}
	delete(l.assets, id)
	delete(l.byPath, a.path)
	return a
}

// Search evaluates query against the index, stores the ordered result
// and resets pagination to page 1.
func (l *Library) Search(query string) []*Asset {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searchLocked(query)
	return append([]*Asset(nil), l.searchResult...)
}

func (l *Library) searchLocked(query string) {
	entries := make([]search.Entry, 0, len(l.assets))
	for _, a := range l.assets {
		entries = append(entries, a)
	}

	result := search.Evaluate(entries, query)

	l.searchResult = make([]*Asset, len(result))
	for i, e := range result {
		l.searchResult[i] = e.(*Asset)
	}
	l.lastQuery = query
	l.currentPage = 1
	l.recomputePagesLocked()
}

// refreshSearchLocked re-runs the last query, keeping the current page
// clamped into range so background scans don't yank the view around.
func (l *Library) refreshSearchLocked() {
	page := l.currentPage
	l.searchLocked(l.lastQuery)
	l.currentPage = clamp(page, 1, l.numberOfPages)
}

func (l *Library) recomputePagesLocked() {
	pages := int(math.Ceil(float64(len(l.searchResult)) / float64(l.assetsPerPage)))
	if pages < 1 {
		pages = 1
	}
	l.numberOfPages = pages
}

// CurrentPage returns the 1-based current page number.
func (l *Library) CurrentPage() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentPage
}

// NumberOfPages returns the page count for the current search result.
func (l *Library) NumberOfPages() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.numberOfPages
}

// AssetsPerPage returns the configured page size.
func (l *Library) AssetsPerPage() int { return l.assetsPerPage }

// GoToPage clamps n into [1, NumberOfPages] and makes it current.
func (l *Library) GoToPage(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentPage = clamp(n, 1, l.numberOfPages)
}

// GoToNextPage advances one page, wrapping from the last page to the
// first. No-op when the search result is empty.
func (l *Library) GoToNextPage() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.searchResult) == 0 {
		return
	}
	l.currentPage++
	if l.currentPage > l.numberOfPages {
		l.currentPage = 1
	}
}

// GoToPrevPage goes back one page, wrapping from the first page to the
// last. No-op when the search result is empty.
func (l *Library) GoToPrevPage() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.searchResult) == 0 {
		return
	}
	l.currentPage--
	if l.currentPage < 1 {
		l.currentPage = l.numberOfPages
	}
}

// CurrentPageAssets returns the slice of the search result visible on
// the current page.
func (l *Library) CurrentPageAssets() []*Asset {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := (l.currentPage - 1) * l.assetsPerPage
	if start >= len(l.searchResult) {
		return nil
	}
	end := start + l.assetsPerPage
	if end > len(l.searchResult) {
		end = len(l.searchResult)
	}
	return append([]*Asset(nil), l.searchResult[start:end]...)
}

// SearchResultLen returns the size of the last search result.
func (l *Library) SearchResultLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.searchResult)
}

// GetNewID allocates a fresh random lowercase-alphanumeric id colliding
// with neither an in-memory id nor an on-disk folder name.
func (l *Library) GetNewID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.newIDLocked()
}

func (l *Library) newIDLocked() string {
	for {
		id := randomID(generatedIDLength)
		if !l.idTakenLocked(id) {
			return id
		}
	}
}

// EnsureUniqueID returns id unchanged when free, else the first free
// numeric-suffix variant (id_2, id_3, ...).
func (l *Library) EnsureUniqueID(id string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureUniqueIDLocked(id)
}

func (l *Library) ensureUniqueIDLocked(id string) string {
	id = strings.ToLower(id)
	if !l.idTakenLocked(id) {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if !l.idTakenLocked(candidate) {
			return candidate
		}
	}
}

func (l *Library) idTakenLocked(id string) bool {
	if _, ok := l.assets[id]; ok {
		return true
	}
	_, err := os.Stat(filepath.Join(l.libraryDir, id))
	return err == nil
}

func randomID(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}

// GetAssetByPath returns the asset whose folder contains path, using
// longest-matching-prefix so nested asset folders resolve to the
// innermost one. Returns nil when no asset contains the path.
func (l *Library) GetAssetByPath(path string) *Asset {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var best *Asset
	for root, a := range l.byPath {
		if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
			continue
		}
		if best == nil || len(root) > len(best.path) {
			best = a
		}
	}
	return best
}

// IsSubAsset reports whether path lies inside any asset folder.
func (l *Library) IsSubAsset(path string) bool {
	return l.GetAssetByPath(path) != nil
}

// GetStats returns aggregate library statistics for the metrics
// collector and the stats endpoint.
func (l *Library) GetStats() metrics.Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	byTag := map[string]int{}
	for _, a := range l.assets {
		for _, tag := range a.Info().SystemTags {
			byTag[tag]++
		}
	}
	return metrics.Stats{
		TotalAssets:  len(l.assets),
		BySystemTag:  byTag,
		LastScanTime: l.lastScanTime,
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
