package models

import "github.com/golang-jwt/jwt/v5"

// OperatorRole gates what an API caller may change.
type OperatorRole string

const (
	RoleAdmin       OperatorRole = "ADMIN"
	RoleCoordinator OperatorRole = "COORDINATOR"
	RoleTrainer     OperatorRole = "TRAINER"
)

// OperatorClaims is the bearer token payload. Tokens are minted by the
// identity provider sharing JWT_SECRET; this service only validates them.
type OperatorClaims struct {
	Email string       `json:"email"`
	Name  string       `json:"name"`
	Role  OperatorRole `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns the identifier recorded on audit runs.
func (c *OperatorClaims) Actor() string {
	if c == nil {
		return "system"
	}
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}
