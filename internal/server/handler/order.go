package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// OrderService defines the methods that the order handler requires from the
// service layer.
type OrderService interface {
	Submit(ctx context.Context, req domain.OrderRequest) (domain.OrderSnapshot, error)
	Cancel(ctx context.Context, id string) (domain.OrderSnapshot, error)
	Get(ctx context.Context, id string) (domain.OrderSnapshot, error)
	List() []domain.OrderSnapshot
}

// OrderHandler serves order-related HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

type listOrdersResponse struct {
	Orders []domain.OrderSnapshot `json:"orders"`
}

// placeOrderRequest is the POST body. Account, venue and stock come from
// configuration.
type placeOrderRequest struct {
	Qty       int64            `json:"qty"`
	Price     int64            `json:"price"`
	Direction domain.Direction `json:"direction"`
	OrderType domain.OrderType `json:"orderType"`
}

// ListOrders returns every order in the ledger.
// GET /api/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.orders.List()
	if orders == nil {
		orders = []domain.OrderSnapshot{}
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}

// GetOrder returns one order.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	snap, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get order")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PlaceOrder submits a new order. An omitted orderType means limit.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body placeOrderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.OrderType == "" {
		body.OrderType = domain.OrderTypeLimit
	}

	snap, err := h.orders.Submit(r.Context(), domain.OrderRequest{
		Qty:       body.Qty,
		Price:     body.Price,
		Direction: body.Direction,
		OrderType: body.OrderType,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to place order")
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// CancelOrder cancels an existing order by its ID.
// DELETE /api/orders/{id}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	snap, err := h.orders.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to cancel order")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
