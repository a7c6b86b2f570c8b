package httpapi

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/gorilla/mux"

	"github.com/printworks/platform/internal/auth"
	"github.com/printworks/platform/internal/domain"
	"github.com/printworks/platform/internal/domain/users"
)

// Options tunes list endpoints.
type Options struct {
	ItemsPerPage int
	MaxPageSize  int
}

type api struct {
	logger   *slog.Logger
	services domain.Container
	issuer   *auth.Issuer
	paging   paging
}

// Register attaches the /v1 API to router. Every route except auth.PublicPaths
// requires a bearer token issued by issuer.
func Register(router *mux.Router, logger *slog.Logger, services domain.Container, issuer *auth.Issuer, opts Options) {
	if opts.ItemsPerPage <= 0 {
		opts.ItemsPerPage = 20
	}
	if opts.MaxPageSize < opts.ItemsPerPage {
		opts.MaxPageSize = opts.ItemsPerPage
	}
	a := &api{
		logger:   logger,
		services: services,
		issuer:   issuer,
		paging:   paging{defaultSize: opts.ItemsPerPage, maxSize: opts.MaxPageSize},
	}

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(auth.Middleware(issuer, services.Users, auth.PublicPaths...))

	v1.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"time":    time.Now().UTC().Format(time.RFC3339),
			"server":  "printworks-platform",
			"version": "v1",
		})
	}).Methods(http.MethodGet)

	a.registerAuthRoutes(v1)
	a.registerClientRoutes(v1)
	a.registerSupplierRoutes(v1)
	a.registerMaterialRoutes(v1)
	a.registerMachineRoutes(v1)
	a.registerJobRoutes(v1)
	a.registerReportRoutes(v1)
	a.registerUserRoutes(v1)
}

// guard restricts h to callers holding p.
func guard(p users.Permission, h http.HandlerFunc) http.HandlerFunc {
	return auth.RequirePermission(p, h)
}

// callerID is the authenticated user's id, or "" if unauthenticated.
func callerID(r *http.Request) string {
	if c, ok := auth.ClaimsFrom(r.Context()); ok {
		return c.UserID
	}
	return ""
}
