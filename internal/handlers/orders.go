package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/poshakghar/api/internal/domain"
	"github.com/poshakghar/api/internal/platform/httpx"
	"github.com/poshakghar/api/internal/repositories"
	"github.com/poshakghar/api/internal/services"
)

// OrdersHandler serves order reads and lifecycle transitions.
type OrdersHandler struct {
	orders *services.OrderService
}

// NewOrdersHandler constructs the handler.
func NewOrdersHandler(orders *services.OrderService) (*OrdersHandler, error) {
	if orders == nil {
		return nil, errors.New("handlers: order service is required")
	}
	return &OrdersHandler{orders: orders}, nil
}

// Get handles GET /orders/{orderID}.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderPayload(order))
}

type listOrdersResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

// List handles GET /orders.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := repositories.OrderFilter{
		Status: domain.OrderStatus(strings.ToLower(strings.TrimSpace(query.Get("status")))),
	}
	from, err := parseTimeParam(query.Get("createdAfter"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "createdAfter must be RFC 3339", http.StatusBadRequest))
		return
	}
	to, err := parseTimeParam(query.Get("createdBefore"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "createdBefore must be RFC 3339", http.StatusBadRequest))
		return
	}
	filter.CreatedRange = domain.RangeQuery[time.Time]{From: from, To: to}

	page := domain.Pagination{PageToken: query.Get("pageToken")}
	if raw := query.Get("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "pageSize must be a positive integer", http.StatusBadRequest))
			return
		}
		page.PageSize = size
	}

	result, err := h.orders.ListOrders(ctx, filter, page)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	response := listOrdersResponse{
		Orders:        make([]orderPayload, 0, len(result.Items)),
		NextPageToken: result.NextPageToken,
	}
	for _, order := range result.Items {
		response.Orders = append(response.Orders, toOrderPayload(order))
	}
	httpx.WriteJSON(w, http.StatusOK, response)
}

type transitionRequest struct {
	Status       string `json:"status"`
	CancelReason string `json:"cancelReason"`
	TrackingCode string `json:"trackingCode"`
}

// Transition handles POST /orders/{orderID}:transition.
func (h *OrdersHandler) Transition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed request body", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Transition(ctx, chi.URLParam(r, "orderID"), services.TransitionInput{
		Status:       domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		CancelReason: domain.CancelReason(strings.ToLower(strings.TrimSpace(req.CancelReason))),
		TrackingCode: req.TrackingCode,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderPayload(order))
}

func parseTimeParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	utc := parsed.UTC()
	return &utc, nil
}
