// Package autoimport ingests files and folders dropped into the
// auto-import staging directory, turning each into a library asset
// folder. The source kind decides the layout: folders move in wholesale,
// archives are extracted with the original preserved, single files land
// alone in a fresh folder.
package autoimport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"

	"asset-library/internal/archive"
	"asset-library/internal/assetinfo"
	"asset-library/internal/library"
	"asset-library/internal/logging"
	"asset-library/internal/metrics"
)

// Source kinds reported in logs and metrics.
const (
	KindFolder  = "folder"
	KindArchive = "archive"
	KindImage   = "image"
	KindBlend   = "blend"
	KindSbsar   = "sbsar"
	KindFile    = "file"
)

// Importer turns dropped paths into asset folders under the library
// root.
type Importer struct {
	lib *library.Library
}

// New creates an Importer for lib.
func New(lib *library.Library) *Importer {
	return &Importer{lib: lib}
}

// ImportPath ingests one dropped file or folder and returns the id of
// the created asset folder. The source is consumed: moved into the
// library, or for archives extracted with the original kept under the
// archive subfolder.
func (im *Importer) ImportPath(ctx context.Context, path string) (string, error) {
	start := time.Now()

	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat of dropped path: %w", err)
	}

	kind := classify(path, fi)
	id, err := im.importAs(ctx, path, kind)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.AutoImportTotal.WithLabelValues(kind, status).Inc()
	metrics.AutoImportDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	logging.Info("Imported %s %q as asset %s", kind, filepath.Base(path), id)
	return id, nil
}

func (im *Importer) importAs(ctx context.Context, path, kind string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := im.lib.EnsureUniqueID(Slug(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))))
	dest := filepath.Join(im.lib.LibraryDir(), id)

	switch kind {
	case KindFolder:
		if err := os.Rename(path, dest); err != nil {
			return "", fmt.Errorf("moving folder into library: %w", err)
		}
		return id, nil

	case KindArchive:
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return "", err
		}
		if err := archive.ExtractZip(path, dest); err != nil {
			os.RemoveAll(dest)
			return "", fmt.Errorf("extracting archive: %w", err)
		}
		// Keep the original alongside the extracted contents.
		archiveDir := filepath.Join(dest, assetinfo.ArchiveDirName)
		if err := os.MkdirAll(archiveDir, 0o755); err != nil {
			return "", err
		}
		if err := moveFile(path, filepath.Join(archiveDir, filepath.Base(path))); err != nil {
			return "", fmt.Errorf("archiving original: %w", err)
		}
		return id, nil

	default:
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return "", err
		}
		if err := moveFile(path, filepath.Join(dest, filepath.Base(path))); err != nil {
			os.RemoveAll(dest)
			return "", fmt.Errorf("moving file into library: %w", err)
		}
		return id, nil
	}
}

// classify decides the import kind from the extension, falling back to
// content sniffing for extensionless files. The sbsar extension wins
// over sniffing since the format is zip-based.
func classify(path string, fi os.FileInfo) string {
	if fi.IsDir() {
		return KindFolder
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return KindArchive
	case ".sbsar":
		return KindSbsar
	case ".blend":
		return KindBlend
	}
	if assetinfo.ImageExtensions[strings.ToLower(filepath.Ext(path))] {
		return KindImage
	}

	head := make([]byte, 262)
	f, err := os.Open(path)
	if err == nil {
		n, _ := io.ReadFull(f, head)
		f.Close()
		head = head[:n]
	}
	if filetype.IsImage(head) {
		return KindImage
	}
	if t, err := filetype.Match(head); err == nil && t.Extension == "zip" {
		return KindArchive
	}
	return KindFile
}

// Slug lowers a name into a library id: lowercase alphanumerics with
// underscores for everything else, runs collapsed.
func Slug(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" {
		return "asset"
	}
	return out
}

// moveFile renames src to dst, falling back to copy-and-delete when the
// two live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
