package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT. The
// role is tagged at sign-in and carried in the token; handlers never
// re-probe profile tables to rediscover it.
type AccessTokenPayload struct {
	ActorID uuid.UUID
	Role    enums.ActorRole
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	ActorID uuid.UUID       `json:"actor_id"`
	Role    enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
