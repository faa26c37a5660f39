package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/poshakghar/api/internal/domain"
	"github.com/poshakghar/api/internal/platform/httpx"
	"github.com/poshakghar/api/internal/services"
)

const idempotencyKeyHeader = "Idempotency-Key"

const maxCheckoutBodyBytes = 1 << 20

// CheckoutHandler serves order placement.
type CheckoutHandler struct {
	checkout *services.CheckoutService
}

// NewCheckoutHandler constructs the handler.
func NewCheckoutHandler(checkout *services.CheckoutService) (*CheckoutHandler, error) {
	if checkout == nil {
		return nil, errors.New("handlers: checkout service is required")
	}
	return &CheckoutHandler{checkout: checkout}, nil
}

type checkoutLineRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type checkoutRequest struct {
	Lines          []checkoutLineRequest `json:"lines"`
	Address        addressPayload        `json:"address"`
	ShippingMethod string                `json:"shippingMethod"`
	CouponCode     string                `json:"couponCode"`
}

// PlaceOrder handles POST /checkout/orders.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkoutRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckoutBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed request body", http.StatusBadRequest))
		return
	}

	input := services.PlaceOrderInput{
		ShippingMethod: domain.ShippingMethod(strings.ToLower(strings.TrimSpace(req.ShippingMethod))),
		CouponCode:     req.CouponCode,
		IdempotencyKey: r.Header.Get(idempotencyKeyHeader),
		Address: domain.ShippingAddress{
			Name:     req.Address.Name,
			Phone:    req.Address.Phone,
			Address:  req.Address.Address,
			City:     req.Address.City,
			District: req.Address.District,
			Notes:    req.Address.Notes,
		},
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, domain.CartLine{
			ProductID: line.ProductID,
			Size:      line.Size,
			Quantity:  line.Quantity,
		})
	}

	order, err := h.checkout.PlaceOrder(ctx, input)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toOrderPayload(order))
}
