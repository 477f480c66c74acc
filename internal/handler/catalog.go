package handler

import (
	"net/http"

	"github.com/sakif/agromarket/internal/service"
)

// CatalogHandler serves /categories and /products.
type CatalogHandler struct {
	categories *service.CategoryService
	products   *service.ProductService
}

func NewCatalogHandler(categories *service.CategoryService, products *service.ProductService) *CatalogHandler {
	return &CatalogHandler{categories: categories, products: products}
}

// HTTP: GET /categories
func (h *CatalogHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.categories.List(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	setTotal(w, len(list))
	writeJSON(w, http.StatusOK, list)
}

// HTTP: GET /categories/{id}
func (h *CatalogHandler) HandleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	c, err := h.categories.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: POST /categories
func (h *CatalogHandler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in service.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	c, err := h.categories.Create(r.Context(), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: PATCH /categories/{id}
func (h *CatalogHandler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	patch, err := decodePatch(w, r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	c, err := h.categories.Update(r.Context(), id, patch)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: DELETE /categories/{id} → 204, or 409 while products use it
func (h *CatalogHandler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.categories.Delete(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: GET /products
func (h *CatalogHandler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.products.List(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	setTotal(w, len(list))
	writeJSON(w, http.StatusOK, list)
}

// HTTP: GET /products/{id}
func (h *CatalogHandler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HTTP: POST /products
func (h *CatalogHandler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	p, err := h.products.Create(r.Context(), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HTTP: PATCH /products/{id}
func (h *CatalogHandler) HandleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	patch, err := decodePatch(w, r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	p, err := h.products.Update(r.Context(), id, patch)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HTTP: DELETE /products/{id} → 200 with the remaining count
func (h *CatalogHandler) HandleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	remaining, err := h.products.Delete(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	setTotal(w, remaining)
	w.WriteHeader(http.StatusOK)
}
