package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/poshakghar/api/internal/domain"
	"github.com/poshakghar/api/internal/platform/httpx"
	"github.com/poshakghar/api/internal/services"
)

// AdminStockHandler serves administrative stock corrections.
type AdminStockHandler struct {
	stock *services.StockService
}

// NewAdminStockHandler constructs the handler.
func NewAdminStockHandler(stock *services.StockService) (*AdminStockHandler, error) {
	if stock == nil {
		return nil, errors.New("handlers: stock service is required")
	}
	return &AdminStockHandler{stock: stock}, nil
}

type adjustStockRequest struct {
	Size   string `json:"size"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type adjustStockResponse struct {
	ProductID string           `json:"productId"`
	Stock     int              `json:"stock"`
	Variants  []variantPayload `json:"variants,omitempty"`
}

type variantPayload struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

// Adjust handles POST /admin/stock/{productID}:adjust.
func (h *AdminStockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed request body", http.StatusBadRequest))
		return
	}

	product, err := h.stock.Adjust(ctx, domain.StockAdjustment{
		ProductID: chi.URLParam(r, "productID"),
		Size:      req.Size,
		Delta:     req.Delta,
		Reason:    req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	response := adjustStockResponse{ProductID: product.ID, Stock: product.Stock}
	for _, v := range product.Variants {
		response.Variants = append(response.Variants, variantPayload{Size: v.Size, Stock: v.Stock})
	}
	httpx.WriteJSON(w, http.StatusOK, response)
}
