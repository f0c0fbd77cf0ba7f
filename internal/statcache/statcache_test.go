package statcache

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"asset-library/internal/contenthash"
	"asset-library/internal/imagestat"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := Open(context.Background(), filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		if err := cache.Close(); err != nil {
			t.Errorf("Close error: %v", err)
		}
	})
	return cache
}

func TestGetMissing(t *testing.T) {
	cache := openTestCache(t)

	_, err := cache.Get(context.Background(), "deadbeef")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	stats := &imagestat.Stats{
		Width:         64,
		Height:        32,
		Channels:      4,
		Dtype:         "uint8",
		Min:           []float64{0, 0, 0, 1},
		Max:           []float64{1, 0.5, 0.25, 1},
		DominantColor: []float64{0.9, 0.1, 0.1},
		Roles:         []string{"color", "color", "color", "alpha"},
	}

	if err := cache.Put(ctx, "abc123", stats); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	loaded, err := cache.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !reflect.DeepEqual(loaded, stats) {
		t.Errorf("Round trip mismatch:\nput: %+v\ngot: %+v", stats, loaded)
	}
}

func TestPutReplaces(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	first := &imagestat.Stats{Width: 1, Height: 1}
	second := &imagestat.Stats{Width: 2, Height: 2}

	if err := cache.Put(ctx, "k", first); err != nil {
		t.Fatal(err)
	}
	if err := cache.Put(ctx, "k", second); err != nil {
		t.Fatal(err)
	}

	loaded, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Width != 2 {
		t.Errorf("Expected replacement, got width %d", loaded.Width)
	}

	count, err := cache.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 entry after replace, got %d", count)
	}
}

func TestDelete(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	if err := cache.Put(ctx, "gone", &imagestat.Stats{Width: 1}); err != nil {
		t.Fatal(err)
	}
	if err := cache.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := cache.Get(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestStatsForFileCaches(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	imgPath := filepath.Join(t.TempDir(), "blue.png")
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{B: 255, A: 255})
		}
	}
	f, err := os.Create(imgPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	first, err := cache.StatsForFile(ctx, imgPath)
	if err != nil {
		t.Fatalf("StatsForFile error: %v", err)
	}
	if first.Width != 4 || first.Height != 4 {
		t.Errorf("Expected 4x4 stats, got %dx%d", first.Width, first.Height)
	}

	// The entry must now be resolvable directly by hash.
	hash, err := contenthash.HashFile(imgPath)
	if err != nil {
		t.Fatal(err)
	}
	cached, err := cache.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Expected cached entry after StatsForFile: %v", err)
	}
	if !reflect.DeepEqual(cached, first) {
		t.Error("Cached stats differ from computed stats")
	}

	second, err := cache.StatsForFile(ctx, imgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Repeated StatsForFile must return identical stats")
	}
}
