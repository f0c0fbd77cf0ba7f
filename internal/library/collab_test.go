package library

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
)

type stubFetcher struct {
	info *FetchedInfo
	err  error
}

func (s *stubFetcher) Fetch(_ context.Context, _, _ string) (*FetchedInfo, error) {
	return s.info, s.err
}

func TestFetchAssetInfo(t *testing.T) {
	root := t.TempDir()
	makeAssetFolder(t, root, "fetched", "a.png")

	fetcher := &stubFetcher{info: &FetchedInfo{
		Name:   "Scraped Name",
		Author: "someone",
		Tags:   []string{"scraped"},
	}}

	lib, err := New(Options{LibraryDir: root, Fetcher: fetcher})
	if err != nil {
		t.Fatalf("Failed to create library: %v", err)
	}
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	// No URL on the asset yet.
	if err := lib.FetchAssetInfo(context.Background(), "fetched"); err == nil {
		t.Error("Expected error for asset without url")
	}

	a := lib.GetAsset("fetched")
	if err := a.UpdateInfo(map[string]interface{}{"url": "https://example.com/a"}); err != nil {
		t.Fatalf("UpdateInfo failed: %v", err)
	}

	if err := lib.FetchAssetInfo(context.Background(), "fetched"); err != nil {
		t.Fatalf("FetchAssetInfo failed: %v", err)
	}

	inf := a.Info()
	if inf.Name != "Scraped Name" {
		t.Errorf("Expected fetched name to merge, got %q", inf.Name)
	}
	if inf.Author != "someone" {
		t.Errorf("Expected fetched author to merge, got %q", inf.Author)
	}
	if len(inf.Tags) != 1 || inf.Tags[0] != "scraped" {
		t.Errorf("Expected fetched tags to merge, got %v", inf.Tags)
	}
}

func TestFetchAssetInfoFailureIsInformational(t *testing.T) {
	root := t.TempDir()
	makeAssetFolder(t, root, "broken", "a.png")

	fetcher := &stubFetcher{err: fmt.Errorf("site layout changed")}
	lib, err := New(Options{LibraryDir: root, Fetcher: fetcher})
	if err != nil {
		t.Fatalf("Failed to create library: %v", err)
	}
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	a := lib.GetAsset("broken")
	if err := a.UpdateInfo(map[string]interface{}{"url": "https://example.com/b"}); err != nil {
		t.Fatalf("UpdateInfo failed: %v", err)
	}

	if err := lib.FetchAssetInfo(context.Background(), "broken"); err == nil {
		t.Fatal("Expected fetch failure to surface as an error")
	}
	// Asset stays registered and intact.
	if lib.GetAsset("broken") == nil {
		t.Error("Expected asset to survive a failed fetch")
	}
}

func waitForIcon(t *testing.T, a *Asset) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !a.HasIcon() {
		if time.Now().After(deadline) {
			t.Fatalf("Expected icon for %s to be rendered", a.ID())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScanRendersMissingIcon(t *testing.T) {
	root := t.TempDir()
	dir := makeAssetFolder(t, root, "painted")

	src := imaging.New(64, 48, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	if err := imaging.Save(src, filepath.Join(dir, "painted.png")); err != nil {
		t.Fatalf("Failed to write source image: %v", err)
	}

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	// Indexing an iconless asset with image sources kicks off icon
	// generation in the background.
	a := lib.GetAsset("painted")
	waitForIcon(t, a)

	icon, err := imaging.Open(a.IconPath())
	if err != nil {
		t.Fatalf("Failed to open rendered icon: %v", err)
	}
	if icon.Bounds() != image.Rect(0, 0, IconSize, IconSize) {
		t.Errorf("Expected %dx%d icon, got %v", IconSize, IconSize, icon.Bounds())
	}
}

func TestRenderAssetIcon(t *testing.T) {
	root := t.TempDir()
	dir := makeAssetFolder(t, root, "repainted")

	src := imaging.New(64, 48, color.NRGBA{R: 40, G: 40, B: 200, A: 255})
	if err := imaging.Save(src, filepath.Join(dir, "repainted.png")); err != nil {
		t.Fatalf("Failed to write source image: %v", err)
	}

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	a := lib.GetAsset("repainted")
	waitForIcon(t, a)

	// An explicit render regenerates a deleted icon.
	if err := os.Remove(a.IconPath()); err != nil {
		t.Fatalf("Failed to delete icon: %v", err)
	}
	a.RefreshState()
	if a.HasIcon() {
		t.Fatal("Expected no icon after deletion")
	}

	if err := lib.RenderAssetIcon(context.Background(), "repainted"); err != nil {
		t.Fatalf("RenderAssetIcon failed: %v", err)
	}
	if !a.HasIcon() {
		t.Error("Expected HasIcon after rendering")
	}
}

func TestRenderAssetIconNoSources(t *testing.T) {
	root := t.TempDir()
	makeAssetFolder(t, root, "empty")

	lib := newTestLibrary(t, root, 10)
	if err := lib.UpdateLibrary(context.Background()); err != nil {
		t.Fatalf("UpdateLibrary failed: %v", err)
	}

	if err := lib.RenderAssetIcon(context.Background(), "empty"); err == nil {
		t.Error("Expected error when no source images exist")
	}
	if _, statErr := os.Stat(lib.GetAsset("empty").IconPath()); !os.IsNotExist(statErr) {
		t.Error("Expected no icon file to be written")
	}
}
