/**
 * @description
 * This file contains the HTTP handlers for the shop endpoints: product
 * listings, purchases, per-product stats and the buyer's library. The
 * purchase endpoint is the coin-sensitive one; the store layer performs the
 * debit, credit and purchase record atomically, so these handlers only
 * translate errors into status codes.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - internal/domain: For request and response models.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/postline/post-service/internal/domain"
)

// CreateProductHandler lists a new product for sale by the caller.
func (h *PostHandlers) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req domain.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := h.service.CreateProduct(r.Context(), identity.Subject, identity.Name, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, product)
}

// ListProductsHandler returns every product listing, newest first.
func (h *PostHandlers) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	h.writeJSON(w, http.StatusOK, products)
}

// BuyProductHandler performs the atomic coin purchase of a product.
func (h *PostHandlers) BuyProductHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	productID, ok := h.pathID(w, r, "productID")
	if !ok {
		return
	}

	receipt, err := h.service.BuyProduct(r.Context(), identity.Subject, productID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, receipt)
}

// ProductStatsHandler returns the sales count for a product.
func (h *PostHandlers) ProductStatsHandler(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productID")
	if !ok {
		return
	}

	stats, err := h.service.ProductStats(r.Context(), productID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// LibraryHandler returns the products the caller has purchased.
func (h *PostHandlers) LibraryHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	items, err := h.service.Library(r.Context(), identity.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []domain.LibraryItem{}
	}
	h.writeJSON(w, http.StatusOK, items)
}
