package handlers

import (
	"time"

	"github.com/gorilla/mux"

	"asset-library/internal/autoimport"
	"asset-library/internal/library"
	"asset-library/internal/statcache"
)

type Handlers struct {
	lib       *library.Library
	cache     *statcache.Cache
	importer  *autoimport.Importer
	startTime time.Time
}

func New(lib *library.Library, cache *statcache.Cache, importer *autoimport.Importer) *Handlers {
	return &Handlers{
		lib:       lib,
		cache:     cache,
		importer:  importer,
		startTime: time.Now(),
	}
}

// RegisterRoutes attaches every API route to the router. Health and
// readiness live at the root; everything else sits under /api.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.Use(metricsMiddleware)

	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/page", h.GetPage).Methods("GET")
	api.HandleFunc("/page/next", h.NextPage).Methods("POST")
	api.HandleFunc("/page/prev", h.PrevPage).Methods("POST")
	api.HandleFunc("/page/{n:[0-9]+}", h.GoToPage).Methods("POST")
	api.HandleFunc("/assets", h.AddAsset).Methods("POST")
	api.HandleFunc("/assets/{id}", h.GetAsset).Methods("GET")
	api.HandleFunc("/assets/{id}", h.UpdateAsset).Methods("PATCH")
	api.HandleFunc("/assets/{id}/icon", h.GetIcon).Methods("GET")
	api.HandleFunc("/assets/{id}/reload", h.ReloadAsset).Methods("POST")
	api.HandleFunc("/assets/{id}/extract", h.ExtractAsset).Methods("POST")
	api.HandleFunc("/import", h.Import).Methods("POST")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
}
