package autoimport

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"asset-library/internal/assetinfo"
	"asset-library/internal/library"
)

func newTestImporter(t *testing.T) (*Importer, *library.Library) {
	t.Helper()
	lib, err := library.New(library.Options{
		LibraryDir: t.TempDir(),
		AutoDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Failed to create library: %v", err)
	}
	return New(lib), lib
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip: %v", err)
	}
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
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Rusty Metal 04", "rusty_metal_04"},
		{"already_fine", "already_fine"},
		{"Wood--Planks!!", "wood_planks"},
		{"  spaces  ", "spaces"},
		{"___", "asset"},
		{"", "asset"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestImportSingleFile(t *testing.T) {
	im, lib := newTestImporter(t)

	src := filepath.Join(lib.AutoDir(), "Old Bricks.blend")
	if err := os.WriteFile(src, []byte("BLENDER"), 0o644); err != nil {
		t.Fatalf("Failed to write source file: %v", err)
	}

	id, err := im.ImportPath(context.Background(), src)
	if err != nil {
		t.Fatalf("ImportPath failed: %v", err)
	}
	if id != "old_bricks" {
		t.Errorf("Expected id old_bricks, got %q", id)
	}

	moved := filepath.Join(lib.LibraryDir(), id, "Old Bricks.blend")
	if _, err := os.Stat(moved); err != nil {
		t.Errorf("Expected file inside new asset folder: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("Expected source file to be consumed")
	}
}

func TestImportFolder(t *testing.T) {
	im, lib := newTestImporter(t)

	src := filepath.Join(lib.AutoDir(), "Mossy Rock")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatalf("Failed to create source folder: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "rock.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	id, err := im.ImportPath(context.Background(), src)
	if err != nil {
		t.Fatalf("ImportPath failed: %v", err)
	}
	if id != "mossy_rock" {
		t.Errorf("Expected id mossy_rock, got %q", id)
	}
	if _, err := os.Stat(filepath.Join(lib.LibraryDir(), id, "rock.png")); err != nil {
		t.Errorf("Expected folder contents to move: %v", err)
	}
}

func TestImportArchiveExtractsAndKeepsOriginal(t *testing.T) {
	im, lib := newTestImporter(t)

	src := filepath.Join(lib.AutoDir(), "pavement.zip")
	writeZip(t, src, map[string]string{
		"pavement_diff.png":     "diffuse",
		"maps/pavement_nrm.png": "normal",
	})

	id, err := im.ImportPath(context.Background(), src)
	if err != nil {
		t.Fatalf("ImportPath failed: %v", err)
	}

	dest := filepath.Join(lib.LibraryDir(), id)
	for _, name := range []string{"pavement_diff.png", filepath.Join("maps", "pavement_nrm.png")} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Errorf("Expected extracted file %s: %v", name, err)
		}
	}
	original := filepath.Join(dest, assetinfo.ArchiveDirName, "pavement.zip")
	if _, err := os.Stat(original); err != nil {
		t.Errorf("Expected original archive to be preserved: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("Expected source archive to be consumed")
	}
}

func TestImportArchiveRejectsEscapingEntry(t *testing.T) {
	im, lib := newTestImporter(t)

	src := filepath.Join(lib.AutoDir(), "evil.zip")
	writeZip(t, src, map[string]string{"../outside.txt": "nope"})

	if _, err := im.ImportPath(context.Background(), src); err == nil {
		t.Fatal("Expected error for archive entry escaping the destination")
	}
	if _, err := os.Stat(filepath.Join(lib.LibraryDir(), "..", "outside.txt")); !os.IsNotExist(err) {
		t.Error("Expected no file written outside the asset folder")
	}
}

func TestImportCollisionGetsSuffix(t *testing.T) {
	im, lib := newTestImporter(t)

	if err := os.MkdirAll(filepath.Join(lib.LibraryDir(), "bricks"), 0o755); err != nil {
		t.Fatalf("Failed to create existing folder: %v", err)
	}

	src := filepath.Join(lib.AutoDir(), "bricks.blend")
	if err := os.WriteFile(src, []byte("BLENDER"), 0o644); err != nil {
		t.Fatalf("Failed to write source file: %v", err)
	}

	id, err := im.ImportPath(context.Background(), src)
	if err != nil {
		t.Fatalf("ImportPath failed: %v", err)
	}
	if id != "bricks_2" {
		t.Errorf("Expected suffixed id bricks_2, got %q", id)
	}
}

func TestClassifySniffsExtensionlessArchive(t *testing.T) {
	im, lib := newTestImporter(t)

	src := filepath.Join(lib.AutoDir(), "mystery")
	writeZip(t, src, map[string]string{"inner.txt": "data"})

	id, err := im.ImportPath(context.Background(), src)
	if err != nil {
		t.Fatalf("ImportPath failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(lib.LibraryDir(), id, "inner.txt")); err != nil {
		t.Errorf("Expected sniffed archive to be extracted: %v", err)
	}
}
