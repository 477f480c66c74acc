package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/agromarket/internal/auth"
	"github.com/sakif/agromarket/internal/service"
)

// OrderHandler serves /orders. Every route runs behind RequireAuth; who may
// see which order is decided by OrderService.
type OrderHandler struct {
	orders *service.OrderService
	logger *slog.Logger
}

func NewOrderHandler(orders *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// HTTP: GET /orders
func (h *OrderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CurrentPrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	list, err := h.orders.List(r.Context(), caller)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	setTotal(w, len(list))
	writeJSON(w, http.StatusOK, list)
}

// HTTP: GET /orders/{id}
func (h *OrderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CurrentPrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), caller, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// HTTP: POST /orders
// REQUEST BODY: {"order_date": "optional", "details": [{"offer_id": "...", "quantity": 2, "stars": 5}]}
func (h *OrderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CurrentPrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var in service.OrderInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	o, err := h.orders.Create(r.Context(), caller, in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.announceTotal(w, r)
	writeJSON(w, http.StatusOK, o)
}

// HTTP: PATCH /orders/{id}
func (h *OrderHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CurrentPrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
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
	o, err := h.orders.Update(r.Context(), caller, id, patch)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// HTTP: DELETE /orders/{id}
func (h *OrderHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CurrentPrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.orders.Delete(r.Context(), caller, id); err != nil {
		WriteError(w, r, err)
		return
	}
	h.announceTotal(w, r)
	w.WriteHeader(http.StatusOK)
}

// HTTP: DELETE /orders/{id}/{detail_id}
func (h *OrderHandler) HandleDeleteDetail(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CurrentPrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	detailID, err := pathID(r, "detail_id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	o, err := h.orders.DeleteDetail(r.Context(), caller, id, detailID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) announceTotal(w http.ResponseWriter, r *http.Request) {
	n, err := h.orders.Count(r.Context())
	if err != nil {
		h.logger.Warn("counting orders", slog.String("error", err.Error()))
		return
	}
	setTotal(w, n)
}
