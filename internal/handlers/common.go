// Package handlers exposes the HTTP surface of the storefront API.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/poshakghar/api/internal/domain"
	"github.com/poshakghar/api/internal/platform/httpx"
	"github.com/poshakghar/api/internal/platform/requestctx"
	"github.com/poshakghar/api/internal/services"

	"go.uber.org/zap"
)

// writeServiceError maps service failures onto the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var out httpx.Error

	var outOfStock *services.OutOfStockError
	var couponInvalid *services.CouponInvalidError
	var transition *services.TransitionError
	var line *services.LineError
	var validation *services.ValidationError

	switch {
	case errors.As(err, &validation):
		out = httpx.NewError("invalid_request", validation.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrValidation):
		out = httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest)
	case errors.As(err, &outOfStock):
		out = httpx.NewError("insufficient_stock", "insufficient stock for one or more items", http.StatusConflict).
			WithDetails(map[string]any{
				"product_id": outOfStock.ProductID,
				"size":       outOfStock.Size,
				"requested":  outOfStock.Requested,
				"available":  outOfStock.Available,
			})
	case errors.Is(err, services.ErrOutOfStock):
		out = httpx.NewError("insufficient_stock", "insufficient stock for one or more items", http.StatusConflict)
	case errors.As(err, &couponInvalid):
		out = httpx.NewError("coupon_invalid", couponInvalid.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, services.ErrCouponInvalid):
		out = httpx.NewError("coupon_invalid", err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &line) && errors.Is(err, services.ErrLineNotFound):
		out = httpx.NewError("product_not_found", err.Error(), http.StatusNotFound).
			WithDetails(map[string]any{"product_id": line.ProductID})
	case errors.Is(err, services.ErrLineNotFound):
		out = httpx.NewError("product_not_found", err.Error(), http.StatusNotFound)
	case errors.As(err, &line) && errors.Is(err, services.ErrVariantNotFound):
		out = httpx.NewError("variant_not_found", err.Error(), http.StatusNotFound).
			WithDetails(map[string]any{"product_id": line.ProductID, "size": line.Size})
	case errors.Is(err, services.ErrVariantNotFound):
		out = httpx.NewError("variant_not_found", err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrOrderNotFound):
		out = httpx.NewError("order_not_found", "order not found", http.StatusNotFound)
	case errors.As(err, &transition):
		out = httpx.NewError("invalid_transition", transition.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrInvalidTransition):
		out = httpx.NewError("invalid_transition", err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrPersistenceFailure):
		out = httpx.NewError("order_commit_failed", "order could not be saved, please retry", http.StatusServiceUnavailable)
	default:
		requestctx.Logger(ctx).Error("unhandled service error", zap.Error(err))
		out = httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError)
	}

	httpx.WriteError(ctx, w, out)
}

type orderLinePayload struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Size        string `json:"size"`
	SKU         string `json:"sku,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Subtotal    int64  `json:"subtotal"`
}

type addressPayload struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	District string `json:"district,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type orderPayload struct {
	ID             string             `json:"id"`
	OrderNumber    string             `json:"orderNumber"`
	Lines          []orderLinePayload `json:"lines"`
	Address        addressPayload     `json:"address"`
	ShippingMethod string             `json:"shippingMethod"`
	ShippingFee    int64              `json:"shippingFee"`
	CouponCode     string             `json:"couponCode,omitempty"`
	DiscountLabel  string             `json:"discountLabel,omitempty"`
	DiscountAmount int64              `json:"discountAmount"`
	Subtotal       int64              `json:"subtotal"`
	TotalAmount    int64              `json:"totalAmount"`
	Status         string             `json:"status"`
	CancelReason   string             `json:"cancelReason,omitempty"`
	TrackingCode   string             `json:"trackingCode,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	ShippedAt      *time.Time         `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time         `json:"deliveredAt,omitempty"`
	CancelledAt    *time.Time         `json:"cancelledAt,omitempty"`
}

func toOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Address: addressPayload{
			Name:     order.Address.Name,
			Phone:    order.Address.Phone,
			Address:  order.Address.Address,
			City:     order.Address.City,
			District: order.Address.District,
			Notes:    order.Address.Notes,
		},
		ShippingMethod: string(order.ShippingMethod),
		ShippingFee:    order.ShippingFee,
		CouponCode:     order.CouponCode,
		DiscountLabel:  order.DiscountLabel,
		DiscountAmount: order.DiscountAmount,
		Subtotal:       order.Subtotal,
		TotalAmount:    order.TotalAmount,
		Status:         string(order.Status),
		CancelReason:   string(order.CancelReason),
		TrackingCode:   order.TrackingCode,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
		ShippedAt:      order.ShippedAt,
		DeliveredAt:    order.DeliveredAt,
		CancelledAt:    order.CancelledAt,
	}
	for _, l := range order.Lines {
		payload.Lines = append(payload.Lines, orderLinePayload{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Size:        l.Size,
			SKU:         l.SKU,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal,
		})
	}
	return payload
}
