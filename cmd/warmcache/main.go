// Command warmcache walks an asset library and fills the image stat
// cache offline, so the first interactive session after a large import
// does not pay the image decoding cost.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"asset-library/internal/assetinfo"
	"asset-library/internal/statcache"
	"asset-library/internal/workers"
)

const defaultDataDir = "/data"

func main() {
	libraryDir := flag.String("library", "", "library root to walk (required)")
	dataDir := flag.String("data", "", "data directory holding the stat cache (default $DATA_DIR or /data)")
	verbose := flag.Bool("v", false, "log every processed file")
	flag.Parse()

	if *libraryDir == "" {
		fmt.Fprintln(os.Stderr, "Usage: warmcache -library <dir> [-data <dir>] [-v]")
		os.Exit(1)
	}

	if *dataDir == "" {
		*dataDir = os.Getenv("DATA_DIR")
		if *dataDir == "" {
			*dataDir = defaultDataDir
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	cache, err := statcache.Open(ctx, filepath.Join(*dataDir, "statcache.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open stat cache: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close stat cache: %v\n", err)
		}
	}()

	images, err := collectImages(*libraryDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to walk library: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d images under %s\n", len(images), *libraryDir)

	start := time.Now()
	processed, failed := warm(ctx, cache, images, *verbose)

	fmt.Printf("Done: %d processed, %d failed in %v\n", processed, failed, time.Since(start).Round(time.Millisecond))
	if ctx.Err() != nil {
		os.Exit(130)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// collectImages gathers every recognized image file under root,
// including gallery folders, skipping reserved icon files and dotfiles.
func collectImages(root string) ([]string, error) {
	var images []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if name == assetinfo.ArchiveDirName || name == assetinfo.ExtraDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if name == assetinfo.IconFileName {
			return nil
		}
		if assetinfo.ImageExtensions[strings.ToLower(filepath.Ext(name))] {
			images = append(images, path)
		}
		return nil
	})
	return images, err
}

// warm hashes and stats every image on a bounded worker pool. Already
// cached files only cost the hash.
func warm(ctx context.Context, cache *statcache.Cache, images []string, verbose bool) (processed, failed int64) {
	jobs := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < workers.ForMixed(len(images)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if _, err := cache.StatsForFile(ctx, path); err != nil {
					atomic.AddInt64(&failed, 1)
					fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", path, err)
					continue
				}
				n := atomic.AddInt64(&processed, 1)
				if verbose {
					fmt.Printf("[%d/%d] %s\n", n, len(images), path)
				}
			}
		}()
	}

	for _, path := range images {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return processed, failed
		case jobs <- path:
		}
	}
	close(jobs)
	wg.Wait()
	return processed, failed
}
