package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/printworks/platform/internal/domain/users"
)

func (a *api) registerUserRoutes(r *mux.Router) {
	r.HandleFunc("/users", guard(users.PermManageUsers, a.listUsers)).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/role", guard(users.PermManageUsers, a.setUserRole)).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}/active", guard(users.PermManageUsers, a.setUserActive)).Methods(http.MethodPut)
}

func (a *api) listUsers(w http.ResponseWriter, r *http.Request) {
	p, err := a.paging.parse(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := a.services.Users.List(r.Context(), p.offset(), p.PerPage)
	if err != nil {
		fail(w, a.logger, "list users", err)
		return
	}
	views := make([]userView, 0, len(results))
	for _, u := range results {
		views = append(views, viewUser(u))
	}
	respondPage(w, p, views, len(views))
}

func (a *api) setUserRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.services.Users.SetRole(r.Context(), pathID(r), req.Role)
	if err != nil {
		fail(w, a.logger, "set user role", err)
		return
	}
	respondJSON(w, http.StatusOK, viewUser(user))
}

func (a *api) setUserActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active *bool `json:"is_active"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Active == nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "is_active: is required", "field": "is_active"})
		return
	}
	if pathID(r) == callerID(r) && !*req.Active {
		respondError(w, http.StatusUnprocessableEntity, "cannot deactivate your own account")
		return
	}
	user, err := a.services.Users.SetActive(r.Context(), pathID(r), *req.Active)
	if err != nil {
		fail(w, a.logger, "set user active", err)
		return
	}
	respondJSON(w, http.StatusOK, viewUser(user))
}
