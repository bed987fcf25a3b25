package rbac

import (
	"log/slog"
	"net/http"

	"github.com/meridian-commerce/meridian-commerce/internal/platform/httpx"
	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

// Middleware wires authorization checks for HTTP handlers.
type Middleware struct {
	Gate   *Gate
	Logger *slog.Logger
}

// Require ensures the authenticated principal may perform action on
// resource. Absent principal yields 401; a denied check yields 403.
func (m Middleware) Require(action Action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.RespondError(w, shared.ErrSessionInvalid)
				return
			}
			allowed, err := m.Gate.Allow(r.Context(), principal.IdentityID, action, resource)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authorization check failed",
						slog.Int64("identity_id", principal.IdentityID),
						slog.String("resource", resource),
						slog.Any("error", err))
				}
				httpx.RespondError(w, shared.Internal(err))
				return
			}
			if !allowed {
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
