package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/teevo/fulfilment-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.MemberRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by callers. The identity
// provider resolves the role once; downstream code only reads it.
type AccessTokenClaims struct {
	UserID uuid.UUID        `json:"user_id"`
	Email  string           `json:"email,omitempty"`
	Role   enums.MemberRole `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token carries the admin capability.
func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == enums.MemberRoleAdmin
}
