// Package rbac evaluates module:action permissions carried by the session.
package rbac

import (
	"log/slog"
	"net/http"

	"github.com/metrik/metrik/internal/platform/httpx"
	"github.com/metrik/metrik/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Require ensures the session may perform action on module.
func (m Middleware) Require(module, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			if !SessionAllowed(sess, module, action) {
				if m.Logger != nil {
					m.Logger.Warn("rbac denied",
						slog.String("user_id", sess.UserID),
						slog.String("module", module),
						slog.String("action", action))
				}
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionAllowed applies Allowed to the session's role and permissions. Used
// by handlers whose module is only known after decoding the request.
func SessionAllowed(sess *shared.Session, module, action string) bool {
	if sess == nil {
		return false
	}
	return Allowed(sess.Role, NewSet(sess.Permissions...), module, action)
}
