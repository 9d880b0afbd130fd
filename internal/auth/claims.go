package auth

import "github.com/golang-jwt/jwt/v5"

// Role names for the operational API. Keep these stable; they are part of the
// auth contract for dashboard and ops tooling.
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// Claims are the only supported JWT claims shape for this service.
// The webhook ingest endpoints do NOT use JWTs; they authenticate via
// provider signature verification. These claims gate the inspection API only.
type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
