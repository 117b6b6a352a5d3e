package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/ordo-backend/api/responses"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
)

// OfficeURLParam names the chi route parameter carrying the office id.
const OfficeURLParam = "officeId"

// OfficeScope resolves {officeId} from the route and rejects offices the token does not grant.
func OfficeScope(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			officeID, err := uuid.Parse(chi.URLParam(r, OfficeURLParam))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid office id"))
				return
			}

			claims := claimsFromContext(ctx)
			if claims == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
				return
			}
			if !claims.CanAccessOffice(officeID) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "office not accessible"))
				return
			}

			ctx = WithOfficeID(ctx, officeID.String())
			if logg != nil {
				ctx = logg.WithOfficeID(ctx, officeID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
