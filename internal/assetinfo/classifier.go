package assetinfo

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"asset-library/internal/logging"
	"asset-library/internal/metrics"
)

// System tags derived from folder contents.
const (
	TagBlend  = "blend"
	TagImage  = "image"
	TagZip    = "zip"
	TagSbsar  = "sbsar"
	TagNoType = "no_type"
)

// AllSystemTags lists every tag Classify can emit, in its stable output
// order.
var AllSystemTags = []string{TagBlend, TagImage, TagZip, TagSbsar, TagNoType}

// ImageExtensions maps file extensions to whether they are recognized
// bitmap formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tga":  true,
	".tif":  true,
	".tiff": true,
	".exr":  true,
	".hdr":  true,
}

// sniffHeaderSize is the number of leading bytes read when a file's
// extension is not recognized. 261 bytes covers every magic number
// filetype knows about.
const sniffHeaderSize = 261

// Classifier derives system tags from the immediate contents of an asset
// folder. Reserved metadata names are ignored. Recomputation is skipped
// when the folder's modification time has not advanced past the
// previously recorded one, unless Force is set.
type Classifier struct {
	// Force disables the mtime freshness check.
	Force bool

	// ReadDir lists a folder's entries. Replaceable for tests; defaults
	// to os.ReadDir.
	ReadDir func(name string) ([]os.DirEntry, error)
}

// NewClassifier returns a Classifier with default settings.
func NewClassifier() *Classifier {
	return &Classifier{ReadDir: os.ReadDir}
}

// Classify scans folder and returns its system tags and the folder scan
// time. When the folder has not been modified since prevMtime (and Force
// is unset) it returns changed=false without touching the directory.
func (c *Classifier) Classify(folder string, prevMtime float64) (tags []string, mtime float64, changed bool, err error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, 0, false, fmt.Errorf("stating %s: %w", folder, err)
	}

	mtime = float64(info.ModTime().UnixNano()) / 1e9
	if !c.Force && mtime <= prevMtime {
		metrics.ClassifierScansTotal.WithLabelValues("fresh").Inc()
		return nil, prevMtime, false, nil
	}

	readDir := c.ReadDir
	if readDir == nil {
		readDir = os.ReadDir
	}

	entries, err := readDir(folder)
	if err != nil {
		return nil, 0, false, fmt.Errorf("reading %s: %w", folder, err)
	}

	found := map[string]bool{}
	for _, entry := range entries {
		if IsReservedName(entry.Name()) || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() {
			continue
		}
		if tag := classifyFile(filepath.Join(folder, entry.Name())); tag != "" {
			found[tag] = true
		}
	}

	// Stable tag order; no_type only when nothing was recognized.
	for _, tag := range []string{TagBlend, TagImage, TagZip, TagSbsar} {
		if found[tag] {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		tags = []string{TagNoType}
	}

	metrics.ClassifierScansTotal.WithLabelValues("recomputed").Inc()
	logging.Debug("Classified %s: %v", folder, tags)
	return tags, mtime, true, nil
}

// classifyFile maps a single file to a system tag, or "" if it carries
// none. Unrecognized extensions fall back to content sniffing.
func classifyFile(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".blend":
		return TagBlend
	case ext == ".zip":
		return TagZip
	case ext == ".sbsar":
		return TagSbsar
	case ImageExtensions[ext]:
		return TagImage
	}

	head, err := readHeader(path, sniffHeaderSize)
	if err != nil {
		return ""
	}
	if filetype.IsImage(head) {
		return TagImage
	}
	if kind, err := filetype.Match(head); err == nil && kind.Extension == "zip" {
		return TagZip
	}
	return ""
}

func readHeader(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}
