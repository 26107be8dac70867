package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	SubjectID uuid.UUID
	Kind      enums.PrincipalKind
	Role      enums.UserRole
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to clients. Workers carry
// Kind "worker" and the role derived from their worker role.
type AccessTokenClaims struct {
	SubjectID uuid.UUID           `json:"sub_id"`
	Kind      enums.PrincipalKind `json:"kind"`
	Role      enums.UserRole      `json:"role"`
	jwt.RegisteredClaims
}

// IsWorker reports whether the token belongs to a delivery worker account.
func (c *AccessTokenClaims) IsWorker() bool {
	return c.Kind == enums.PrincipalWorker
}
