package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/printworks/platform/internal/domain/users"
)

type ctxKey struct{}

// PublicPaths are reachable without a bearer token.
var PublicPaths = []string{"/v1/ping", "/v1/auth/login", "/v1/auth/register"}

// WithClaims returns a copy of ctx carrying c.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// ClaimsFrom returns the claims stored by Middleware, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok && c != nil
}

// UserLookup loads the current state of a token's user.
type UserLookup interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// Middleware rejects requests without a valid bearer token, except for
// skip paths, and stores the verified claims in the request context.
//
// When lookup is set the token only identifies the user: deactivated or
// deleted accounts are rejected and role and permissions are taken from the
// stored user, so role changes apply to tokens already issued.
func Middleware(issuer *Issuer, lookup UserLookup, skip ...string) func(http.Handler) http.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			scheme, raw, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := issuer.Verify(strings.TrimSpace(raw))
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if lookup != nil {
				status, msg := refresh(r.Context(), lookup, claims)
				if status != 0 {
					writeError(w, status, msg)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// refresh replaces the token's role and permissions with the stored user's.
// A non-zero status means the request must be rejected.
func refresh(ctx context.Context, lookup UserLookup, claims *Claims) (int, string) {
	u, err := lookup.Get(ctx, claims.UserID)
	switch {
	case errors.Is(err, users.ErrNotFound):
		return http.StatusUnauthorized, "unknown user"
	case err != nil:
		return http.StatusInternalServerError, "internal error"
	case !u.IsActive:
		return http.StatusUnauthorized, users.ErrInactive.Error()
	}

	perms := u.Permissions()
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, string(p))
	}
	claims.Email = u.Email
	claims.Role = u.Role
	claims.Permissions = names
	return 0, ""
}

// RequirePermission wraps next so that only callers whose token grants p
// reach it.
func RequirePermission(p users.Permission, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !claims.HasPermission(p) {
			writeError(w, http.StatusForbidden, "missing permission: "+string(p))
			return
		}
		next(w, r)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
