package api

import (
	"net/http"

	"github.com/okian/profiler/internal/domain/catalog"
)

// CatalogDependencies defines the interface for catalog reads.
type CatalogDependencies interface {
	Lookup(name string) (catalog.Entry, error)
}

type entryResponse struct {
	catalog.Entry
	DisplayType string `json:"display_type"`
}

// CatalogHandler handles catalog requests.
type CatalogHandler struct {
	deps CatalogDependencies
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps CatalogDependencies) *CatalogHandler {
	return &CatalogHandler{deps: deps}
}

// HandleGetEntry handles GET /catalog/{name} requests.
func (h *CatalogHandler) HandleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.Lookup(r.PathValue("name"))
	if err != nil {
		writeFailure(w, "api.get_catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, entryResponse{Entry: e, DisplayType: e.DisplayType()})
}
