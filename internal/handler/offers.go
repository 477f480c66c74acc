package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/agromarket/internal/auth"
	"github.com/sakif/agromarket/internal/service"
)

// OfferHandler serves /offers: the public listings, seller-owned edits
// under /offers/myoffer and the admin routes.
type OfferHandler struct {
	offers *service.OfferService
	logger *slog.Logger
}

func NewOfferHandler(offers *service.OfferService, logger *slog.Logger) *OfferHandler {
	return &OfferHandler{offers: offers, logger: logger}
}

// HTTP: GET /offers
func (h *OfferHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.offers.List(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	setTotal(w, len(list))
	writeJSON(w, http.StatusOK, list)
}

// HTTP: GET /offers/{id}
func (h *OfferHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	o, err := h.offers.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// HandlePage serves the filtered, sorted, paginated joined listing.
//
// HTTP: GET /offers/{offset}/{limit}/{sortingfield}/{filter}
// HTTP: GET /offers/active/{offset}/{limit}/{sortingfield}/{filter}
//
// x-total-count is the number of matches before pagination.
func (h *OfferHandler) HandlePage(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := service.ParsePageQuery(
			chi.URLParam(r, "offset"),
			chi.URLParam(r, "limit"),
			unescape(r, chi.URLParam(r, "sortingfield")),
			unescape(r, chi.URLParam(r, "filter")),
			active,
		)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		page, err := h.offers.Page(r.Context(), q)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		setTotal(w, page.Total)
		writeJSON(w, http.StatusOK, page.Items)
	}
}

// HandleListOwn lists the caller's offers in joined form. The {id} segment of
// the route is accepted and ignored.
//
// HTTP: GET /offers/myoffer/{id}
func (h *OfferHandler) HandleListOwn(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CurrentPrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	views, err := h.offers.ListOwn(r.Context(), caller)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	setTotal(w, len(views))
	writeJSON(w, http.StatusOK, views)
}

// HTTP: POST /offers
func (h *OfferHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CurrentPrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var in service.OfferInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	o, err := h.offers.Create(r.Context(), caller, in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.announceTotal(w, r)
	writeJSON(w, http.StatusOK, o)
}

// HTTP: PATCH /offers/{id} (admin)
func (h *OfferHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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
	o, err := h.offers.Update(r.Context(), id, patch)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// HTTP: PATCH /offers/myoffer/{id}
func (h *OfferHandler) HandleUpdateOwn(w http.ResponseWriter, r *http.Request) {
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
	o, err := h.offers.UpdateOwn(r.Context(), caller, id, patch)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// HTTP: DELETE /offers/{id} (admin)
func (h *OfferHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.offers.Delete(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}
	h.announceTotal(w, r)
	w.WriteHeader(http.StatusOK)
}

// HTTP: DELETE /offers/myoffer/{id}
func (h *OfferHandler) HandleDeleteOwn(w http.ResponseWriter, r *http.Request) {
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
	if err := h.offers.DeleteOwn(r.Context(), caller, id); err != nil {
		WriteError(w, r, err)
		return
	}
	h.announceTotal(w, r)
	w.WriteHeader(http.StatusOK)
}

// announceTotal sets x-total-count after a write. The write already
// succeeded, so a failed count is only logged.
func (h *OfferHandler) announceTotal(w http.ResponseWriter, r *http.Request) {
	n, err := h.offers.Count(r.Context())
	if err != nil {
		h.logger.Warn("counting offers", slog.String("error", err.Error()))
		return
	}
	setTotal(w, n)
}

// unescape decodes a path segment. chi routes on RawPath when the request
// path carries escapes, and regex filters usually do; otherwise the segment
// is already decoded and must be left alone.
func unescape(r *http.Request, segment string) string {
	if r.URL.RawPath == "" {
		return segment
	}
	if v, err := url.PathUnescape(segment); err == nil {
		return v
	}
	return segment
}
