package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"asset-library/internal/archive"
	"asset-library/internal/assetinfo"
	"asset-library/internal/logging"
	"asset-library/internal/metrics"
	"asset-library/internal/workers"
)

// UpdateLibrary rebuilds the index from disk. Every top-level folder
// under the library root becomes an asset; a failure loading one folder
// is logged and skipped so a single damaged sidecar never takes the
// whole library down.
func (l *Library) UpdateLibrary(ctx context.Context) error {
	start := time.Now()
	logging.Info("Scanning library at %s", l.libraryDir)

	entries, err := os.ReadDir(l.libraryDir)
	if err != nil {
		metrics.LibraryScansTotal.WithLabelValues("library", "error").Inc()
		return fmt.Errorf("reading library dir: %w", err)
	}

	folders := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		folders = append(folders, e.Name())
	}
	// Deterministic order so case collisions resolve the same way on
	// every scan (last one in sort order wins).
	sort.Strings(folders)

	loaded := l.loadFolders(ctx, folders)

	l.mu.Lock()
	l.assets = map[string]*Asset{}
	l.byPath = map[string]*Asset{}
	for _, name := range folders {
		a, ok := loaded[name]
		if !ok {
			continue
		}
		if prev, exists := l.assets[a.id]; exists {
			logging.Warn("Asset id collision: %q shadows %q, keeping the latter", filepath.Base(prev.path), name)
		}
		l.registerLocked(a)
	}
	l.lastScanTime = time.Now()
	l.ready = true
	l.refreshSearchLocked()
	total := len(l.assets)
	registered := make([]*Asset, 0, total)
	for _, a := range l.assets {
		registered = append(registered, a)
	}
	l.mu.Unlock()

	for _, a := range registered {
		l.maybeRenderIcon(a)
	}
	l.updateAssetGauges()
	metrics.LibraryScansTotal.WithLabelValues("library", "success").Inc()
	metrics.LibraryScanDuration.Observe(time.Since(start).Seconds())
	metrics.LibraryLastScanTimestamp.SetToCurrentTime()

	logging.Info("Library scan complete: %d assets in %v", total, time.Since(start).Round(time.Millisecond))
	return nil
}

// loadFolders loads asset folders concurrently with a bounded worker
// pool. Results are keyed by folder name; failed folders are absent.
func (l *Library) loadFolders(ctx context.Context, folders []string) map[string]*Asset {
	workerCount := l.scanWorkers
	if workerCount < 1 {
		workerCount = workers.ForIO(len(folders))
	}
	if workerCount > len(folders) {
		workerCount = len(folders)
	}
	if workerCount < 1 {
		workerCount = 1
	}

	var (
		mu     sync.Mutex
		loaded = make(map[string]*Asset, len(folders))
		wg     sync.WaitGroup
		jobs   = make(chan string)
	)

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				a, err := l.loadAsset(l.classifier, filepath.Join(l.libraryDir, name))
				if err != nil {
					logging.Warn("Skipping asset folder %q: %v", name, err)
					metrics.LibraryScanAssetErrors.Inc()
					continue
				}
				mu.Lock()
				loaded[name] = a
				mu.Unlock()
			}
		}()
	}

	for _, name := range folders {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return loaded
		case jobs <- name:
		}
	}
	close(jobs)
	wg.Wait()
	return loaded
}

// loadAsset reads one asset folder: the metadata sidecar first, then a
// system-tag classification that only runs when the folder changed
// since the recorded scan time.
func (l *Library) loadAsset(c *assetinfo.Classifier, path string) (*Asset, error) {
	inf, err := assetinfo.Load(filepath.Join(path, assetinfo.InfoFileName))
	if err != nil {
		return nil, err
	}
	a := newAsset(path, inf)

	tags, mtime, changed, err := c.Classify(path, inf.SystemTagsMtime)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := a.SetSystemTags(tags, mtime); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// CreateAsset builds a brand new asset folder: allocates a unique id,
// writes the initial metadata, moves the given source files in and
// registers the result. The id is derived from the info name when
// present, otherwise randomly allocated. Returns the new asset.
func (l *Library) CreateAsset(files []string, info map[string]interface{}) (*Asset, error) {
	// The folder is created while the lock is held: the on-disk Mkdir is
	// what makes the id visible to idTakenLocked, so a concurrent caller
	// allocating the same name gets the next suffix instead of the same
	// folder.
	l.mu.Lock()
	var id, dest string
	var mkErr error
	for {
		if name, ok := info["name"].(string); ok && name != "" {
			id = l.ensureUniqueIDLocked(slugify(name))
		} else {
			id = l.newIDLocked()
		}
		dest = filepath.Join(l.libraryDir, id)
		mkErr = os.Mkdir(dest, 0o755)
		if mkErr == nil || !os.IsExist(mkErr) {
			break
		}
	}
	l.mu.Unlock()
	if mkErr != nil {
		return nil, fmt.Errorf("creating asset folder: %w", mkErr)
	}

	inf := assetinfo.FromMap(info)
	inf.Ctime = float64(time.Now().Unix())
	if err := assetinfo.WriteFresh(filepath.Join(dest, assetinfo.InfoFileName), inf); err != nil {
		os.RemoveAll(dest)
		return nil, err
	}

	for _, src := range files {
		if err := os.Rename(src, filepath.Join(dest, filepath.Base(src))); err != nil {
			return nil, fmt.Errorf("moving %q into asset folder: %w", filepath.Base(src), err)
		}
	}

	return l.AddAsset(dest)
}

// slugify lowers a display name into an id candidate.
func slugify(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	if b.Len() == 0 {
		return "asset"
	}
	return b.String()
}

// AddAsset registers an already-created asset folder under the library
// root and makes it visible to search immediately.
func (l *Library) AddAsset(path string) (*Asset, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if filepath.Dir(abs) != l.libraryDir {
		return nil, fmt.Errorf("asset folder %s is not directly under the library root", abs)
	}

	a, err := l.loadAsset(l.classifier, abs)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.registerLocked(a)
	l.refreshSearchLocked()
	l.mu.Unlock()

	l.updateAssetGauges()
	l.maybeRenderIcon(a)
	return a, nil
}

// ReloadAsset re-reads one asset from disk. A vanished folder drops the
// asset from the index instead of erroring, so reloads after manual
// deletion just converge. When newID is non-empty the folder is renamed
// first. With doReimport the classifier re-runs unconditionally;
// otherwise the recorded scan time skips unchanged folders, making the
// reload metadata-only.
func (l *Library) ReloadAsset(id string, doReimport bool, newID string) (*Asset, error) {
	id = strings.ToLower(id)

	// The lock is held across the rename and the re-read so no other
	// operation can observe the half-renamed state: either the old entry
	// with its old path, or the new entry with the new path.
	l.mu.Lock()
	a, err := l.reloadAssetLocked(id, doReimport, newID)
	l.mu.Unlock()

	l.updateAssetGauges()
	if err != nil {
		return nil, err
	}
	l.maybeRenderIcon(a)
	return a, nil
}

func (l *Library) reloadAssetLocked(id string, doReimport bool, newID string) (*Asset, error) {
	existing, ok := l.assets[id]
	if !ok {
		return nil, ErrNotFound
	}

	path := existing.path
	if newID != "" && newID != id {
		newID = l.ensureUniqueIDLocked(newID)
		newPath := filepath.Join(l.libraryDir, newID)
		// Drop the old entry before touching the disk so a failure below
		// never leaves the index pointing at a moved-away folder.
		l.unregisterLocked(id)
		if err := os.Rename(path, newPath); err != nil {
			l.refreshSearchLocked()
			return nil, fmt.Errorf("renaming asset folder: %w", err)
		}
		path = newPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		l.unregisterLocked(id)
		l.refreshSearchLocked()
		return nil, nil
	}

	classifier := l.classifier
	if doReimport {
		classifier = assetinfo.NewClassifier()
		classifier.Force = true
	}
	a, err := l.loadAsset(classifier, path)
	if err != nil {
		if newID != "" && newID != id {
			l.refreshSearchLocked()
		}
		return nil, err
	}

	l.unregisterLocked(id)
	l.registerLocked(a)
	l.refreshSearchLocked()
	return a, nil
}

// ExtractAssetArchive unpacks every zip archive sitting directly inside
// the asset folder, preserves the originals under the archive subfolder
// and reclassifies the asset so the zip system tag disappears. Errors
// when the asset has no archive to extract.
func (l *Library) ExtractAssetArchive(ctx context.Context, id string) (*Asset, error) {
	a := l.GetAsset(id)
	if a == nil {
		return nil, ErrNotFound
	}

	files, err := a.Files()
	if err != nil {
		return nil, err
	}

	extracted := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.ToLower(filepath.Ext(f)) != ".zip" {
			continue
		}
		if err := archive.ExtractZip(f, a.Path()); err != nil {
			return nil, fmt.Errorf("extracting %s: %w", filepath.Base(f), err)
		}
		if err := os.MkdirAll(a.ArchiveDir(), 0o755); err != nil {
			return nil, err
		}
		if err := os.Rename(f, filepath.Join(a.ArchiveDir(), filepath.Base(f))); err != nil {
			return nil, fmt.Errorf("archiving original %s: %w", filepath.Base(f), err)
		}
		extracted++
	}
	if extracted == 0 {
		return nil, fmt.Errorf("asset %s has no archive to extract", a.ID())
	}

	return l.ReloadAsset(a.ID(), true, "")
}

// RemoveAsset drops an asset from the index. The folder on disk is left
// alone.
func (l *Library) RemoveAsset(id string) error {
	l.mu.Lock()
	a := l.unregisterLocked(strings.ToLower(id))
	if a != nil {
		l.refreshSearchLocked()
	}
	l.mu.Unlock()

	if a == nil {
		return ErrNotFound
	}
	l.updateAssetGauges()
	return nil
}

// UpdateAuto sweeps the auto-import folder, handing each top-level
// entry to the configured importer. Entries that fail stay in place for
// the next sweep.
func (l *Library) UpdateAuto(ctx context.Context) error {
	l.mu.Lock()
	importer := l.importer
	l.mu.Unlock()

	if l.autoDir == "" || importer == nil {
		return nil
	}

	entries, err := os.ReadDir(l.autoDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		metrics.LibraryScansTotal.WithLabelValues("auto", "error").Inc()
		return fmt.Errorf("reading auto-import dir: %w", err)
	}

	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(l.autoDir, e.Name())
		id, err := importer.ImportPath(ctx, path)
		if err != nil {
			logging.Error("Auto-import of %q failed: %v", e.Name(), err)
			continue
		}
		logging.Info("Auto-imported %q as asset %s", e.Name(), id)
		if _, err := l.AddAsset(filepath.Join(l.libraryDir, id)); err != nil {
			logging.Error("Registering imported asset %s: %v", id, err)
		}
	}
	metrics.LibraryScansTotal.WithLabelValues("auto", "success").Inc()
	return nil
}

func (l *Library) updateAssetGauges() {
	stats := l.GetStats()
	metrics.LibraryAssetsTotal.Set(float64(stats.TotalAssets))
	for _, tag := range assetinfo.AllSystemTags {
		metrics.LibraryAssetsByType.WithLabelValues(tag).Set(float64(stats.BySystemTag[tag]))
	}
}
