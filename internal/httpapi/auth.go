package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/printworks/platform/internal/auth"
	"github.com/printworks/platform/internal/domain/users"
)

type userView struct {
	users.User
	Permissions []users.Permission `json:"permissions"`
}

func viewUser(u users.User) userView {
	return userView{User: u, Permissions: u.Permissions()}
}

func (a *api) registerAuthRoutes(r *mux.Router) {
	r.HandleFunc("/auth/register", a.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", a.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", a.handleMe).Methods(http.MethodGet)
	r.HandleFunc("/auth/roles", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"data": a.services.Users.Roles()})
	}).Methods(http.MethodGet)
}

func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var input users.RegisterInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Self-registration always yields an operator; roles are granted by
	// users with manage_users.
	input.Role = users.RoleOperator

	user, err := a.services.Users.Register(r.Context(), input)
	if err != nil {
		fail(w, a.logger, "register user", err)
		return
	}
	token, err := a.issuer.Issue(user)
	if err != nil {
		fail(w, a.logger, "issue token", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"user":  viewUser(user),
		"token": token,
	})
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.services.Users.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound), errors.Is(err, users.ErrInvalidPassword):
			respondError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, users.ErrInactive):
			respondError(w, http.StatusForbidden, err.Error())
		default:
			fail(w, a.logger, "login", err)
		}
		return
	}
	token, err := a.issuer.Issue(user)
	if err != nil {
		fail(w, a.logger, "issue token", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user":  viewUser(user),
		"token": token,
	})
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	user, err := a.services.Users.Get(r.Context(), claims.UserID)
	if err != nil {
		fail(w, a.logger, "get current user", err)
		return
	}
	respondJSON(w, http.StatusOK, viewUser(user))
}
