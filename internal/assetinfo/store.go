package assetinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"asset-library/internal/logging"
	"asset-library/internal/metrics"
)

// Load reads the metadata sidecar at path. A missing file yields a fresh
// empty record which is persisted immediately. A corrupt file is renamed
// aside with a timestamped suffix and replaced with a fresh record; the
// original bytes stay on disk for forensic recovery. Load only returns an
// error for I/O failures, never for bad content.
func Load(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		inf := NewInfo()
		inf.Ctime = float64(time.Now().Unix())
		if err := WriteFresh(path, inf); err != nil {
			return nil, err
		}
		return inf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%s", path, time.Now().Format("20060102-150405"))
		logging.Warn("Corrupt metadata at %s, renaming aside to %s: %v", path, aside, err)
		metrics.MetadataRepairsTotal.Inc()

		if renameErr := os.Rename(path, aside); renameErr != nil {
			return nil, fmt.Errorf("renaming corrupt metadata aside: %w", renameErr)
		}
		inf := NewInfo()
		inf.Ctime = float64(time.Now().Unix())
		if err := WriteFresh(path, inf); err != nil {
			return nil, err
		}
		return inf, nil
	}

	Migrate(m)
	Standardize(m)
	return FromMap(m), nil
}

// Save persists the record at path as an update-merge into whatever is
// currently on disk, so keys written concurrently by external tooling are
// not lost. Only at creation (no readable file) is the record written
// outright.
func Save(path string, inf *Info) error {
	onDisk := map[string]interface{}{}
	if data, err := os.ReadFile(path); err == nil {
		// A corrupt on-disk file at save time is overwritten; Load already
		// preserved a copy aside if it saw the corruption first.
		if err := json.Unmarshal(data, &onDisk); err != nil {
			onDisk = map[string]interface{}{}
		} else {
			Migrate(onDisk)
			Standardize(onDisk)
		}
	}

	record := inf.ToMap()
	merged := MergeUpdate(onDisk, record)
	// System tags are derived from a folder scan; the in-memory value is
	// authoritative. Append-merging would resurrect stale tags (a "zip"
	// tag must disappear once its archive is extracted).
	merged["system_tags"] = record["system_tags"]
	merged["system_tags_mtime"] = record["system_tags_mtime"]
	return writeJSON(path, merged)
}

// WriteFresh writes the record at path outright, replacing any existing
// content. Used at asset creation and corruption recovery.
func WriteFresh(path string, inf *Info) error {
	return writeJSON(path, inf.ToMap())
}

// writeJSON writes pretty-printed UTF-8 JSON atomically via a temp file
// in the same directory.
func writeJSON(path string, m map[string]interface{}) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".info-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp metadata file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing metadata file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing metadata file: %w", err)
	}

	metrics.MetadataWritesTotal.Inc()
	return nil
}
