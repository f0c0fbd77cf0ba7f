package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"asset-library/internal/library"
	"asset-library/internal/logging"
)

// AssetResponse is the JSON shape of one asset in API responses.
type AssetResponse struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	URL        string             `json:"url,omitempty"`
	Author     string             `json:"author,omitempty"`
	Tags       []string           `json:"tags"`
	SystemTags []string           `json:"systemTags"`
	Dimensions map[string]float64 `json:"dimensions,omitempty"`
	Ctime      float64            `json:"ctime"`
	HasIcon    bool               `json:"hasIcon"`
}

// PageResponse carries one page of search results plus the pagination
// state needed to render controls.
type PageResponse struct {
	Assets       []AssetResponse `json:"assets"`
	Page         int             `json:"page"`
	Pages        int             `json:"pages"`
	PerPage      int             `json:"perPage"`
	TotalResults int             `json:"totalResults"`
}

func assetToResponse(a *library.Asset) AssetResponse {
	inf := a.Info()
	return AssetResponse{
		ID:         a.ID(),
		Name:       a.Name(),
		URL:        inf.URL,
		Author:     inf.Author,
		Tags:       inf.Tags,
		SystemTags: inf.SystemTags,
		Dimensions: inf.Dimensions,
		Ctime:      inf.Ctime,
		HasIcon:    a.HasIcon(),
	}
}

func (h *Handlers) pageResponse() PageResponse {
	assets := h.lib.CurrentPageAssets()
	out := PageResponse{
		Assets:       make([]AssetResponse, 0, len(assets)),
		Page:         h.lib.CurrentPage(),
		Pages:        h.lib.NumberOfPages(),
		PerPage:      h.lib.AssetsPerPage(),
		TotalResults: h.lib.SearchResultLen(),
	}
	for _, a := range assets {
		out.Assets = append(out.Assets, assetToResponse(a))
	}
	return out
}

// Search runs a query and returns the first result page
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	h.lib.Search(query)
	writeJSON(w, h.pageResponse())
}

// GetPage returns the current page of the last search
func (h *Handlers) GetPage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.pageResponse())
}

// NextPage advances to the next page, wrapping at the end
func (h *Handlers) NextPage(w http.ResponseWriter, _ *http.Request) {
	h.lib.GoToNextPage()
	writeJSON(w, h.pageResponse())
}

// PrevPage goes back one page, wrapping at the start
func (h *Handlers) PrevPage(w http.ResponseWriter, _ *http.Request) {
	h.lib.GoToPrevPage()
	writeJSON(w, h.pageResponse())
}

// GoToPage jumps to a specific page, clamped into range
func (h *Handlers) GoToPage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		writeJSONError(w, "invalid page number", http.StatusBadRequest)
		return
	}
	h.lib.GoToPage(n)
	writeJSON(w, h.pageResponse())
}

// GetAsset returns one asset's metadata
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	a := h.lib.GetAsset(mux.Vars(r)["id"])
	if a == nil {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}
	writeJSON(w, assetToResponse(a))
}

// UpdateAsset merges a JSON patch into the asset's metadata
func (h *Handlers) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	a := h.lib.GetAsset(mux.Vars(r)["id"])
	if a == nil {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}

	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := a.UpdateInfo(patch); err != nil {
		logging.Error("updating asset %s: %v", a.ID(), err)
		writeJSONError(w, "failed to update asset", http.StatusInternalServerError)
		return
	}
	writeJSON(w, assetToResponse(a))
}

// GetIcon serves the asset's icon image
func (h *Handlers) GetIcon(w http.ResponseWriter, r *http.Request) {
	a := h.lib.GetAsset(mux.Vars(r)["id"])
	if a == nil {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}
	if !a.HasIcon() {
		writeJSONError(w, "asset has no icon", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, a.IconPath())
}

// ReloadAsset re-reads one asset from disk, optionally renaming it
func (h *Handlers) ReloadAsset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewID    string `json:"newId"`
		Reimport bool   `json:"reimport"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	a, err := h.lib.ReloadAsset(mux.Vars(r)["id"], body.Reimport, body.NewID)
	if errors.Is(err, library.ErrNotFound) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("reloading asset: %v", err)
		writeJSONError(w, "failed to reload asset", http.StatusInternalServerError)
		return
	}
	if a == nil {
		// Folder vanished; the asset was dropped from the index.
		writeJSON(w, map[string]string{"status": "removed"})
		return
	}
	writeJSON(w, assetToResponse(a))
}

// ExtractAsset unpacks an asset's zip archives in place and reclassifies it
func (h *Handlers) ExtractAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.lib.ExtractAssetArchive(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, library.ErrNotFound) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("extracting asset archive: %v", err)
		writeJSONError(w, "failed to extract archive", http.StatusBadRequest)
		return
	}
	writeJSON(w, assetToResponse(a))
}

// AddAsset registers an existing folder under the library root, or
// creates a new asset from staged files plus initial metadata when the
// body carries "files"/"info" instead of "path".
func (h *Handlers) AddAsset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path  string                 `json:"path"`
		Files []string               `json:"files"`
		Info  map[string]interface{} `json:"info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	var (
		a   *library.Asset
		err error
	)
	switch {
	case body.Path != "":
		a, err = h.lib.AddAsset(body.Path)
	case len(body.Files) > 0 || body.Info != nil:
		a, err = h.lib.CreateAsset(body.Files, body.Info)
	default:
		writeJSONError(w, "missing asset path or files", http.StatusBadRequest)
		return
	}
	if err != nil {
		logging.Error("adding asset: %v", err)
		writeJSONError(w, "failed to add asset", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, assetToResponse(a))
}

// Import runs the auto-import classifier on a dropped path
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeJSONError(w, "auto-import is not configured", http.StatusNotImplemented)
		return
	}

	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Path == "" {
		writeJSONError(w, "missing import path", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(body.Path); err != nil {
		writeJSONError(w, "import path not readable", http.StatusBadRequest)
		return
	}

	id, err := h.importer.ImportPath(r.Context(), body.Path)
	if err != nil {
		logging.Error("importing %q: %v", body.Path, err)
		writeJSONError(w, "import failed", http.StatusInternalServerError)
		return
	}

	a, err := h.lib.AddAsset(filepath.Join(h.lib.LibraryDir(), id))
	if err != nil {
		logging.Error("registering imported asset %s: %v", id, err)
		writeJSONError(w, "import succeeded but registration failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, assetToResponse(a))
}

// StatsResponse summarizes the library for dashboards
type StatsResponse struct {
	TotalAssets  int            `json:"totalAssets"`
	BySystemTag  map[string]int `json:"bySystemTag"`
	LastScan     string         `json:"lastScan,omitempty"`
	CachedStats  int            `json:"cachedStats"`
	SearchEngine struct {
		Pages   int `json:"pages"`
		Results int `json:"results"`
	} `json:"search"`
}

// GetStats returns aggregated library statistics
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.lib.GetStats()

	response := StatsResponse{
		TotalAssets: stats.TotalAssets,
		BySystemTag: stats.BySystemTag,
	}
	if !stats.LastScanTime.IsZero() {
		response.LastScan = stats.LastScanTime.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	if h.cache != nil {
		if count, err := h.cache.Count(r.Context()); err == nil {
			response.CachedStats = count
		}
	}
	response.SearchEngine.Pages = h.lib.NumberOfPages()
	response.SearchEngine.Results = h.lib.SearchResultLen()

	writeJSON(w, response)
}
