package handler

import (
	"net/http"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/service"
	"github.com/sakif/agromarket/internal/session"
)

// CartHandler serves /cart. The cart lives in the session payload, so it
// survives across requests without touching storage and dies with the session.
type CartHandler struct {
	cart     *service.CartService
	sessions *session.Manager
}

func NewCartHandler(cart *service.CartService, sessions *session.Manager) *CartHandler {
	return &CartHandler{cart: cart, sessions: sessions}
}

// HTTP: GET /cart
func (h *CartHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.send(w, p.Cart)
}

// HTTP: POST /cart
// REQUEST BODY: {"offer_id": "...", "quantity": 2}
func (h *CartHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var in service.CartInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	cart, err := h.cart.Add(r.Context(), p.Cart, in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	p.Cart = cart
	if err := h.sessions.Save(w, r, *p); err != nil {
		WriteError(w, r, err)
		return
	}
	h.send(w, p.Cart)
}

// HTTP: DELETE /cart
func (h *CartHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	p.Cart = nil
	if err := h.sessions.Save(w, r, *p); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) load(r *http.Request) (*session.Payload, error) {
	p, err := h.sessions.Load(r)
	if err != nil {
		return nil, apperror.Unauthenticated()
	}
	return p, nil
}

func (h *CartHandler) send(w http.ResponseWriter, cart []model.CartItem) {
	if cart == nil {
		cart = []model.CartItem{}
	}
	setTotal(w, len(cart))
	writeJSON(w, http.StatusOK, cart)
}
