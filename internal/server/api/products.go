package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/kundan/internal/catalog"
	"github.com/ayusman/kundan/internal/log"
)

// ImageCache drops cached product images.
type ImageCache interface {
	Invalidate(id string)
}

// ProductHandler handles HTTP requests for catalog products.
type ProductHandler struct {
	products *catalog.ProductRepository
	images   ImageCache
	log      *logrus.Entry
}

// NewProductHandler creates a ProductHandler. images may be nil.
func NewProductHandler(products *catalog.ProductRepository, images ImageCache, logger *logrus.Entry) *ProductHandler {
	if logger == nil {
		logger = log.Discard()
	}
	return &ProductHandler{products: products, images: images, log: logger}
}

// ServeHTTP routes /api/products and /api/products/{id}.
func (h *ProductHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/products")
	id = strings.TrimPrefix(id, "/")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type productRequest struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	ImagePath string `json:"image_path"`
	Strategy  string `json:"strategy"`
}

type productResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	ImagePath string `json:"image_path"`
	Strategy  string `json:"strategy,omitempty"`
	CreatedAt string `json:"created_at"`
}

type listProductsResponse struct {
	Products []productResponse `json:"products"`
}

func toProductResponse(p *catalog.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Kind:      string(p.Kind),
		ImagePath: p.ImagePath,
		Strategy:  p.Strategy,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// list handles GET /api/products, optionally filtered by ?kind=.
func (h *ProductHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		products []*catalog.Product
		err      error
	)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		products, err = h.products.ListByKind(catalog.Kind(kind))
	} else {
		products, err = h.products.List()
	}
	if err != nil {
		h.log.WithError(err).Error("listing products")
		writeError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}

	resp := listProductsResponse{Products: make([]productResponse, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) get(w http.ResponseWriter, id string) {
	p, err := h.products.GetByID(id)
	if err != nil {
		h.writeStoreError(w, err, "Failed to get product")
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// create handles POST /api/products.
func (h *ProductHandler) create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	p := &catalog.Product{
		Name:      req.Name,
		Kind:      catalog.Kind(req.Kind),
		ImagePath: req.ImagePath,
		Strategy:  req.Strategy,
	}
	if err := h.products.Create(p); err != nil {
		h.writeStoreError(w, err, "Failed to create product")
		return
	}

	h.log.WithFields(log.Fields{"product": p.ID, "kind": p.Kind}).Info("product created")
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// update handles PUT /api/products/{id}. Empty fields keep their value.
func (h *ProductHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.products.GetByID(id)
	if err != nil {
		h.writeStoreError(w, err, "Failed to get product")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name != "" {
		p.Name = req.Name
	}
	if req.Kind != "" {
		p.Kind = catalog.Kind(req.Kind)
	}
	if req.ImagePath != "" {
		p.ImagePath = req.ImagePath
	}
	if req.Strategy != "" {
		p.Strategy = req.Strategy
	}

	if err := h.products.Update(p); err != nil {
		h.writeStoreError(w, err, "Failed to update product")
		return
	}
	h.invalidate(id)
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) delete(w http.ResponseWriter, id string) {
	if err := h.products.Delete(id); err != nil {
		h.writeStoreError(w, err, "Failed to delete product")
		return
	}
	h.invalidate(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) invalidate(id string) {
	if h.images != nil {
		h.images.Invalidate(id)
	}
}

func (h *ProductHandler) writeStoreError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, catalog.ErrInvalidProduct):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.WithError(err).Error(msg)
		writeError(w, http.StatusInternalServerError, msg)
	}
}
