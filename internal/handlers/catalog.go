package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/markjakearzadon/shoegame-gobackend/internal/services"
)

type CatalogHandler struct {
	catalog *services.CatalogService
}

func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// GetProducts lists products, optionally narrowed by ?category= and ?maxPrice=.
func (h *CatalogHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var maxPrice float64
	if raw := q.Get("maxPrice"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "maxPrice must be a non-negative number")
			return
		}
		maxPrice = v
	}

	writeJSON(w, http.StatusOK, h.catalog.Filter(q.Get("category"), maxPrice))
}

func (h *CatalogHandler) GetFeatured(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Featured())
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.ByID(mux.Vars(r)["id"])
	if errors.Is(err, services.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, product)
}
