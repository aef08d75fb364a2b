package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/teevo/fulfilment-backend/api/responses"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
)

// RequireAdmin gates the admin router. It must run after Auth; an
// unauthenticated request still gets 401 rather than 403.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			switch {
			case UserIDFromContext(ctx) == uuid.Nil:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			case !IsAdminFromContext(ctx):
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
				return
			}
			if logg != nil {
				ctx = logg.WithActorRole(ctx, "admin")
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
