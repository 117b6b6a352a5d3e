package officecontext

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/ordo-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/google/uuid"
)

// ResolveOfficeID extracts the office resolved by the office scope middleware.
func ResolveOfficeID(r *http.Request) (uuid.UUID, error) {
	officeID := middleware.OfficeIDFromContext(r.Context())
	if officeID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "office context required")
	}

	id, err := uuid.Parse(officeID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid office id")
	}
	return id, nil
}

// ResolveUserID extracts the authenticated user.
func ResolveUserID(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}

// ResolveURLID parses a uuid route parameter.
func ResolveURLID(r *http.Request, param string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, param+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}
