package models

import "github.com/golang-jwt/jwt/v5"

// Roles recognised by the RBAC middleware. Tokens are issued by the external
// identity service; this API only verifies them.
const (
	RoleAdmin   = "admin"
	RoleLearner = "learner"
)

// Claims is the JWT payload shared with the identity service.
type Claims struct {
	UserID int64  `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
