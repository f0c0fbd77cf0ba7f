package library

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"asset-library/internal/logging"
)

// FetchAssetInfo asks the configured URL fetcher for metadata about the
// asset's URL and merges whatever came back into the sidecar. A scrape
// failure is returned as-is for the caller to report; it never unregisters
// or damages the asset.
func (l *Library) FetchAssetInfo(ctx context.Context, id string) error {
	if l.fetcher == nil {
		return fmt.Errorf("no URL fetcher configured")
	}
	a := l.GetAsset(id)
	if a == nil {
		return ErrNotFound
	}
	url := a.URL()
	if url == "" {
		return fmt.Errorf("asset %s has no url to fetch from", id)
	}

	fetched, err := l.fetcher.Fetch(ctx, url, a.ExtraDir())
	if err != nil {
		return fmt.Errorf("fetching info for %s: %w", id, err)
	}
	return a.UpdateInfo(fetched.ToPatch())
}

// RenderAssetIcon runs the icon renderer over the asset's images and
// refreshes the asset state so HasIcon reflects the result.
func (l *Library) RenderAssetIcon(ctx context.Context, id string) error {
	a := l.GetAsset(id)
	if a == nil {
		return ErrNotFound
	}

	sources := a.GalleryImages()
	if len(sources) == 0 {
		images, err := a.Images()
		if err != nil {
			return err
		}
		sources = images
	}

	if err := l.renderer.RenderIcon(ctx, a.IconPath(), sources); err != nil {
		return err
	}
	a.RefreshState()
	return nil
}

// maybeRenderIcon kicks off icon generation for an asset that has image
// sources but no icon yet. Fire-and-forget; the asset is usable either
// way.
func (l *Library) maybeRenderIcon(a *Asset) {
	if a == nil || a.HasIcon() {
		return
	}
	go func() {
		if len(a.GalleryImages()) == 0 {
			images, err := a.Images()
			if err != nil || len(images) == 0 {
				return
			}
		}
		if err := l.RenderAssetIcon(context.Background(), a.ID()); err != nil {
			logging.Debug("No icon rendered for %s: %v", a.ID(), err)
		}
	}()
}

// FetchedInfo is the flat record returned by a URL metadata fetcher: a
// subset of the asset metadata fields scraped from a third-party site.
type FetchedInfo struct {
	Name       string
	URL        string
	Author     string
	AuthorURL  string
	Licence    string
	LicenceURL string
	Tags       []string
}

// ToPatch converts the fetched record into an update-merge patch,
// leaving out empty fields so they don't clobber existing values.
func (f *FetchedInfo) ToPatch() map[string]interface{} {
	patch := map[string]interface{}{}
	set := func(key, value string) {
		if value != "" {
			patch[key] = value
		}
	}
	set("name", f.Name)
	set("url", f.URL)
	set("author", f.Author)
	set("author_url", f.AuthorURL)
	set("licence", f.Licence)
	set("licence_url", f.LicenceURL)
	if len(f.Tags) > 0 {
		tags := make([]interface{}, len(f.Tags))
		for i, t := range f.Tags {
			tags[i] = t
		}
		patch["tags"] = tags
	}
	return patch
}

// URLFetcher fetches asset metadata for a URL, optionally downloading
// files into targetDir. A scrape failure is reported as an error with a
// human-readable reason; it is informational, never fatal to the index.
type URLFetcher interface {
	Fetch(ctx context.Context, url, targetDir string) (*FetchedInfo, error)
}

// IconRenderer produces a square icon image at iconPath from the given
// source images. Implementations may run out of process (a renderer
// invocation); the library calls it fire-and-forget.
type IconRenderer interface {
	RenderIcon(ctx context.Context, iconPath string, sources []string) error
}

// IconSize is the edge length of generated placeholder icons.
const IconSize = 256

// PlaceholderRenderer is the in-tree IconRenderer: it center-crops the
// first source image to a square and scales it to IconSize.
type PlaceholderRenderer struct{}

// RenderIcon implements IconRenderer.
func (PlaceholderRenderer) RenderIcon(ctx context.Context, iconPath string, sources []string) error {
	if len(sources) == 0 {
		return fmt.Errorf("no source images for icon %s", iconPath)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := imaging.Open(sources[0])
	if err != nil {
		return fmt.Errorf("opening icon source %s: %w", sources[0], err)
	}

	icon := imaging.Fill(img, IconSize, IconSize, imaging.Center, imaging.Lanczos)
	if err := saveIcon(iconPath, icon); err != nil {
		return err
	}

	logging.Debug("Rendered placeholder icon %s from %s", iconPath, sources[0])
	return nil
}

func saveIcon(iconPath string, icon image.Image) error {
	if err := os.MkdirAll(filepath.Dir(iconPath), 0o755); err != nil {
		return fmt.Errorf("creating icon folder: %w", err)
	}
	if err := imaging.Save(icon, iconPath); err != nil {
		return fmt.Errorf("saving icon %s: %w", iconPath, err)
	}
	return nil
}
