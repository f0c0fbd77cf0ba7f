package library

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"asset-library/internal/assetinfo"
)

func makeAssetFolder(t *testing.T, root, id string, files ...string) string {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create asset folder: %v", err)
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("content"), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return dir
}

func newTestLibrary(t *testing.T, root string, perPage int) *Library {
	t.Helper()
	lib, err := New(Options{LibraryDir: root, AssetsPerPage: perPage})
	if err != nil {
		t.Fatalf("Failed to create library: %v", err)
	}
	return lib
}

func TestUpdateLibraryIndexesFolders(t *testing.T) {
	root := t.TempDir()
	makeAssetFolder(t, root, "bricks", "bricks.blend")
	makeAssetFolder(t, root, "moss", "moss.png")

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	if lib.Len() != 2 {
		t.Errorf("Expected 2 assets, got %d", lib.Len())
	}
	if !lib.Ready() {
		t.Error("Expected library to be ready after scan")
	}

	a := lib.GetAsset("bricks")
	if a == nil {
		t.Fatal("Expected asset bricks to be indexed")
	}
	tags := a.Info().SystemTags
	if len(tags) != 1 || tags[0] != assetinfo.TagBlend {
		t.Errorf("Expected system tags [blend], got %v", tags)
	}

	// Sidecar should have been created on disk.
	if _, err := os.Stat(a.InfoPath()); err != nil {
		t.Errorf("Expected metadata sidecar to exist: %v", err)
	}
}

func TestUpdateLibrarySkipsBrokenAsset(t *testing.T) {
	root := t.TempDir()
	makeAssetFolder(t, root, "good", "good.blend")

	// A folder whose sidecar path is itself a directory cannot be
	// loaded or repaired.
	bad := makeAssetFolder(t, root, "bad")
	if err := os.MkdirAll(filepath.Join(bad, assetinfo.InfoFileName), 0o755); err != nil {
		t.Fatalf("Failed to set up broken asset: %v", err)
	}

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	if lib.Len() != 1 {
		t.Errorf("Expected 1 asset after skipping broken folder, got %d", lib.Len())
	}
	if lib.GetAsset("good") == nil {
		t.Error("Expected healthy asset to survive a broken sibling")
	}
}

func TestReloadAssetPicksUpRemovedArchive(t *testing.T) {
	root := t.TempDir()
	dir := makeAssetFolder(t, root, "fabric", "fabric.png", "fabric.zip")

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	a := lib.GetAsset("fabric")
	tags := a.Info().SystemTags
	if len(tags) != 2 || tags[0] != assetinfo.TagImage || tags[1] != assetinfo.TagZip {
		t.Fatalf("Expected system tags [image zip], got %v", tags)
	}

	// Simulate extraction: the archive disappears from the folder.
	if err := os.Remove(filepath.Join(dir, "fabric.zip")); err != nil {
		t.Fatalf("Failed to remove archive: %v", err)
	}

	a, err := lib.ReloadAsset("fabric", true, "")
	if err != nil {
		t.Fatalf("ReloadAsset failed: %v", err)
	}
	tags = a.Info().SystemTags
	if len(tags) != 1 || tags[0] != assetinfo.TagImage {
		t.Errorf("Expected system tags [image] after archive removal, got %v", tags)
	}
}

func TestReloadAssetVanishedFolderDropsAsset(t *testing.T) {
	root := t.TempDir()
	dir := makeAssetFolder(t, root, "gone", "gone.png")

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("Failed to delete asset folder: %v", err)
	}

	a, err := lib.ReloadAsset("gone", false, "")
	if err != nil {
		t.Fatalf("ReloadAsset on vanished folder should not error, got %v", err)
	}
	if a != nil {
		t.Error("Expected nil asset for vanished folder")
	}
	if lib.GetAsset("gone") != nil {
		t.Error("Expected vanished asset to be dropped from the index")
	}
}

func TestReloadAssetRename(t *testing.T) {
	root := t.TempDir()
	oldDir := makeAssetFolder(t, root, "oldname", "a.png")

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	a, err := lib.ReloadAsset("oldname", false, "newname")
	if err != nil {
		t.Fatalf("ReloadAsset with rename failed: %v", err)
	}
	if a.ID() != "newname" {
		t.Errorf("Expected id newname, got %q", a.ID())
	}
	if lib.GetAsset("oldname") != nil {
		t.Error("Expected old id to be gone from the index")
	}
	if _, err := os.Stat(filepath.Join(root, "newname")); err != nil {
		t.Errorf("Expected renamed folder on disk: %v", err)
	}
	if got := lib.GetAssetByPath(filepath.Join(root, "newname", "a.png")); got == nil || got.ID() != "newname" {
		t.Errorf("Expected new path to resolve to the renamed asset, got %v", got)
	}
	if lib.GetAssetByPath(filepath.Join(oldDir, "a.png")) != nil {
		t.Error("Expected old path to be unindexed after rename")
	}
}

func TestReloadAssetRenameFailureDropsStaleEntry(t *testing.T) {
	root := t.TempDir()
	dir := makeAssetFolder(t, root, "fragile", "a.png")

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	// Break the sidecar so the reload after the rename fails.
	sidecar := filepath.Join(dir, assetinfo.InfoFileName)
	if err := os.Remove(sidecar); err != nil {
		t.Fatalf("Failed to remove sidecar: %v", err)
	}
	if err := os.MkdirAll(sidecar, 0o755); err != nil {
		t.Fatalf("Failed to break sidecar: %v", err)
	}

	if _, err := lib.ReloadAsset("fragile", false, "sturdy"); err == nil {
		t.Fatal("Expected reload to fail on a broken sidecar")
	}
	// The index must not keep an entry pointing at the moved-away path.
	if lib.GetAsset("fragile") != nil {
		t.Error("Expected stale entry to be dropped after the failed reload")
	}
	if lib.GetAssetByPath(filepath.Join(dir, "a.png")) != nil {
		t.Error("Expected old path to be unindexed")
	}
	if _, err := os.Stat(filepath.Join(root, "sturdy")); err != nil {
		t.Errorf("Expected renamed folder on disk: %v", err)
	}
}

func TestCreateAsset(t *testing.T) {
	root := t.TempDir()
	staging := t.TempDir()

	src := filepath.Join(staging, "diffuse.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatalf("Failed to write staged file: %v", err)
	}

	lib := newTestLibrary(t, root, 10)
	a, err := lib.CreateAsset([]string{src}, map[string]interface{}{
		"name": "Red Bricks",
		"tags": []interface{}{"brick"},
	})
	if err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}

	if a.ID() != "red_bricks" {
		t.Errorf("Expected id red_bricks, got %q", a.ID())
	}
	if a.Name() != "Red Bricks" {
		t.Errorf("Expected persisted name, got %q", a.Name())
	}
	if _, err := os.Stat(filepath.Join(root, "red_bricks", "diffuse.png")); err != nil {
		t.Errorf("Expected staged file inside new asset folder: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("Expected staged file to be consumed")
	}
	if lib.GetAsset("red_bricks") == nil {
		t.Error("Expected new asset to be registered")
	}
}

func TestCreateAssetWithoutNameGetsRandomID(t *testing.T) {
	lib := newTestLibrary(t, t.TempDir(), 10)

	a, err := lib.CreateAsset(nil, nil)
	if err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}
	if len(a.ID()) != generatedIDLength {
		t.Errorf("Expected random %d-character id, got %q", generatedIDLength, a.ID())
	}
}

func TestCreateAssetConcurrentSameName(t *testing.T) {
	root := t.TempDir()
	lib := newTestLibrary(t, root, 10)

	const callers = 32
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]int{}
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := lib.CreateAsset(nil, map[string]interface{}{"name": "Wood"})
			if err != nil {
				t.Errorf("CreateAsset failed: %v", err)
				return
			}
			mu.Lock()
			ids[a.ID()]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	for id, n := range ids {
		if n != 1 {
			t.Errorf("Expected unique ids, got %q returned %d times", id, n)
		}
	}
	if len(ids) != callers {
		t.Errorf("Expected %d distinct ids, got %d", callers, len(ids))
	}
	if lib.Len() != callers {
		t.Errorf("Expected %d indexed assets, got %d", callers, lib.Len())
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("Failed to read library root: %v", err)
	}
	if len(entries) != callers {
		t.Errorf("Expected %d asset folders, got %d", callers, len(entries))
	}
}

func writeZipFile(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to add zip entry: %v", err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write zip entry: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finish zip: %v", err)
	}
}

func TestExtractAssetArchive(t *testing.T) {
	root := t.TempDir()
	dir := makeAssetFolder(t, root, "crate", "crate.png")
	writeZipFile(t, filepath.Join(dir, "crate.zip"), map[string]string{
		"diffuse.png":     "pixels",
		"maps/normal.png": "pixels",
	})

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	a := lib.GetAsset("crate")
	tags := a.Info().SystemTags
	if len(tags) != 2 || tags[0] != assetinfo.TagImage || tags[1] != assetinfo.TagZip {
		t.Fatalf("Expected system tags [image zip], got %v", tags)
	}

	a, err := lib.ExtractAssetArchive(context.Background(), "crate")
	if err != nil {
		t.Fatalf("ExtractAssetArchive failed: %v", err)
	}

	tags = a.Info().SystemTags
	if len(tags) != 1 || tags[0] != assetinfo.TagImage {
		t.Errorf("Expected system tags [image] after extraction, got %v", tags)
	}
	if _, err := os.Stat(filepath.Join(dir, "diffuse.png")); err != nil {
		t.Errorf("Expected extracted file in the asset folder: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "maps", "normal.png")); err != nil {
		t.Errorf("Expected nested extracted file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(a.ArchiveDir(), "crate.zip")); err != nil {
		t.Errorf("Expected original archive to be preserved: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "crate.zip")); !os.IsNotExist(err) {
		t.Error("Expected original archive to leave the folder root")
	}
}

func TestExtractAssetArchiveNothingToExtract(t *testing.T) {
	root := t.TempDir()
	makeAssetFolder(t, root, "plain", "a.png")

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	if _, err := lib.ExtractAssetArchive(context.Background(), "plain"); err == nil {
		t.Error("Expected error for asset without an archive")
	}
	if _, err := lib.ExtractAssetArchive(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestPagination(t *testing.T) {
	root := t.TempDir()
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5"} {
		makeAssetFolder(t, root, id, id+".png")
	}

	lib := newTestLibrary(t, root, 2)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}
	lib.Search("")

	if lib.NumberOfPages() != 3 {
		t.Errorf("Expected 3 pages for 5 assets at 2 per page, got %d", lib.NumberOfPages())
	}
	if lib.CurrentPage() != 1 {
		t.Errorf("Expected search to reset to page 1, got %d", lib.CurrentPage())
	}

	if got := len(lib.CurrentPageAssets()); got != 2 {
		t.Errorf("Expected 2 assets on page 1, got %d", got)
	}

	lib.GoToPage(3)
	if got := len(lib.CurrentPageAssets()); got != 1 {
		t.Errorf("Expected 1 asset on the last page, got %d", got)
	}

	// Next wraps last -> first.
	lib.GoToNextPage()
	if lib.CurrentPage() != 1 {
		t.Errorf("Expected next page to wrap to 1, got %d", lib.CurrentPage())
	}

	// Prev wraps first -> last.
	lib.GoToPrevPage()
	if lib.CurrentPage() != 3 {
		t.Errorf("Expected previous page to wrap to 3, got %d", lib.CurrentPage())
	}

	// Out-of-range requests clamp.
	lib.GoToPage(99)
	if lib.CurrentPage() != 3 {
		t.Errorf("Expected page request to clamp to 3, got %d", lib.CurrentPage())
	}
	lib.GoToPage(-4)
	if lib.CurrentPage() != 1 {
		t.Errorf("Expected page request to clamp to 1, got %d", lib.CurrentPage())
	}
}

func TestPaginationEmptyResult(t *testing.T) {
	lib := newTestLibrary(t, t.TempDir(), 2)
	lib.Search("")

	if lib.NumberOfPages() != 1 {
		t.Errorf("Expected 1 page for empty result, got %d", lib.NumberOfPages())
	}
	lib.GoToNextPage()
	lib.GoToPrevPage()
	if lib.CurrentPage() != 1 {
		t.Errorf("Expected page to stay at 1 on empty result, got %d", lib.CurrentPage())
	}
	if got := lib.CurrentPageAssets(); got != nil {
		t.Errorf("Expected no assets on empty result, got %d", len(got))
	}
}

func TestEnsureUniqueID(t *testing.T) {
	root := t.TempDir()
	makeAssetFolder(t, root, "wood", "wood.png")
	makeAssetFolder(t, root, "wood_2", "wood.png")

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	if got := lib.EnsureUniqueID("wood"); got != "wood_3" {
		t.Errorf("Expected wood_3, got %q", got)
	}
	if got := lib.EnsureUniqueID("stone"); got != "stone" {
		t.Errorf("Expected unused id to pass through, got %q", got)
	}
}

func TestEnsureUniqueIDSeesUnindexedFolders(t *testing.T) {
	root := t.TempDir()
	// On disk but never scanned into the index.
	makeAssetFolder(t, root, "metal")

	lib := newTestLibrary(t, root, 10)
	if got := lib.EnsureUniqueID("metal"); got != "metal_2" {
		t.Errorf("Expected on-disk folder to count as taken, got %q", got)
	}
}

func TestGetNewIDFormat(t *testing.T) {
	lib := newTestLibrary(t, t.TempDir(), 10)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := lib.GetNewID()
		if len(id) != generatedIDLength {
			t.Fatalf("Expected %d-character id, got %q", generatedIDLength, id)
		}
		for _, c := range id {
			if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
				t.Fatalf("Expected lowercase alphanumeric id, got %q", id)
			}
		}
		seen[id] = true
	}
	if len(seen) < 49 {
		t.Errorf("Expected generated ids to be essentially unique, got %d distinct of 50", len(seen))
	}
}

func TestGetAssetByPath(t *testing.T) {
	root := t.TempDir()
	outer := makeAssetFolder(t, root, "outer", "a.png")

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	inner := filepath.Join(outer, "sub", "deep.png")
	if got := lib.GetAssetByPath(inner); got == nil || got.ID() != "outer" {
		t.Errorf("Expected nested path to resolve to outer, got %v", got)
	}
	if got := lib.GetAssetByPath(outer); got == nil || got.ID() != "outer" {
		t.Errorf("Expected asset root to resolve to itself, got %v", got)
	}
	if lib.GetAssetByPath(filepath.Join(root, "elsewhere")) != nil {
		t.Error("Expected unrelated path to resolve to nil")
	}
	if !lib.IsSubAsset(inner) {
		t.Error("Expected IsSubAsset to report true for contained path")
	}
}

func TestRemoveAsset(t *testing.T) {
	root := t.TempDir()
	makeAssetFolder(t, root, "doomed", "a.png")

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	if err := lib.RemoveAsset("doomed"); err != nil {
		t.Fatalf("RemoveAsset failed: %v", err)
	}
	if lib.GetAsset("doomed") != nil {
		t.Error("Expected asset to be gone from the index")
	}
	if err := lib.RemoveAsset("doomed"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound on second removal, got %v", err)
	}

	// Folder itself stays on disk.
	if _, err := os.Stat(filepath.Join(root, "doomed")); err != nil {
		t.Errorf("Expected folder to survive index removal: %v", err)
	}
}

func TestGetStats(t *testing.T) {
	root := t.TempDir()
	makeAssetFolder(t, root, "one", "a.blend")
	makeAssetFolder(t, root, "two", "b.blend", "c.png")

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	stats := lib.GetStats()
	if stats.TotalAssets != 2 {
		t.Errorf("Expected 2 total assets, got %d", stats.TotalAssets)
	}
	if stats.BySystemTag[assetinfo.TagBlend] != 2 {
		t.Errorf("Expected 2 blend assets, got %d", stats.BySystemTag[assetinfo.TagBlend])
	}
	if stats.BySystemTag[assetinfo.TagImage] != 1 {
		t.Errorf("Expected 1 image asset, got %d", stats.BySystemTag[assetinfo.TagImage])
	}
	if stats.LastScanTime.IsZero() {
		t.Error("Expected last scan time to be set")
	}
}

func TestSearchFindsByTag(t *testing.T) {
	root := t.TempDir()
	makeAssetFolder(t, root, "redbrick", "a.png")
	makeAssetFolder(t, root, "bluewood", "b.png")

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	if err := lib.GetAsset("redbrick").UpdateInfo(map[string]interface{}{
		"tags": []interface{}{"brick", "red"},
	}); err != nil {
		t.Fatalf("UpdateInfo failed: %v", err)
	}

	result := lib.Search("brick")
	if len(result) != 1 || result[0].ID() != "redbrick" {
		t.Fatalf("Expected search to return redbrick only, got %d results", len(result))
	}

	// Singular/plural widening applies in whole-token mode.
	result = lib.Search("bricks :w")
	if len(result) != 1 || result[0].ID() != "redbrick" {
		t.Errorf("Expected plural form to match, got %d results", len(result))
	}
}
