package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

// AccessTokenClaims is the token the identity service hands to customers, staff and riders.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Actor is the principal performing an operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// SystemActor is used by background jobs.
var SystemActor = Actor{Role: enums.RoleSystem}

// ActorFromClaims converts verified claims into an Actor.
func ActorFromClaims(c *AccessTokenClaims) Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{UserID: c.UserID, Role: c.Role}
}

// IsStaff reports whether the actor may operate any order.
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// Label is the value written to audit columns such as order_tracking.updated_by.
func (a Actor) Label() string {
	if a.Role == enums.RoleSystem || a.UserID == uuid.Nil {
		return string(enums.RoleSystem)
	}
	return fmt.Sprintf("%s:%s", a.Role, a.UserID)
}
