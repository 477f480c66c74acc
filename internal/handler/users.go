package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/agromarket/internal/auth"
	"github.com/sakif/agromarket/internal/service"
)

// UserHandler serves /users. Role checks happen in the router; the handler
// only enforces what depends on the record (self-service profile edits).
type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// HTTP: GET /users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	setTotal(w, len(users))
	writeJSON(w, http.StatusOK, users)
}

// HTTP: GET /users/keyword/{keyword}
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Search(r.Context(), chi.URLParam(r, "keyword"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	setTotal(w, len(users))
	writeJSON(w, http.StatusOK, users)
}

// HTTP: GET /users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: POST /users
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.CreateUserInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	user, err := h.users.Create(r.Context(), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: PATCH /users/{id}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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
	user, err := h.users.Update(r.Context(), id, patch)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateProfile lets a user edit their own record, minus e-mail, roles
// and verification state.
//
// HTTP: PATCH /users/profile/{id}
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
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
	user, err := h.users.UpdateProfile(r.Context(), caller, id, patch)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: DELETE /users/{id} → 204
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
