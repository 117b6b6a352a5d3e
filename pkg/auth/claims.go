package auth

import (
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	OfficeIDs []uuid.UUID
	Role      enums.UserRole
	JTI       string
}

// AccessTokenClaims represents the typed JWT presented by clients.
type AccessTokenClaims struct {
	UserID    uuid.UUID      `json:"user_id"`
	OfficeIDs []uuid.UUID    `json:"office_ids,omitempty"`
	Role      enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// CanAccessOffice reports whether the token grants access to the office.
// Admins reach every office.
func (c *AccessTokenClaims) CanAccessOffice(officeID uuid.UUID) bool {
	if c == nil {
		return false
	}
	if c.Role == enums.UserRoleAdmin {
		return true
	}
	for _, id := range c.OfficeIDs {
		if id == officeID {
			return true
		}
	}
	return false
}
