package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/pts/internal/platform/auth"
)

// User maps to the usuarios table. The id is the identity provider's
// subject, so profiles are created for existing accounts, never minted here.
type User struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	DisplayName string    `db:"nome" json:"display_name"`
	Role        auth.Role `db:"role" json:"role"`
	CreatedAt   time.Time `db:"criado_em" json:"created_at"`
	UpdatedAt   time.Time `db:"atualizado_em" json:"updated_at"`
}

// CreateInput is the body of POST /users and the flags of `user create`.
type CreateInput struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Me is the caller's identity together with their profile, if one exists.
type Me struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        auth.Role `json:"role"`
	HasProfile  bool      `json:"has_profile"`
}

// storedRole is the value kept in usuarios.role.
func storedRole(r auth.Role) string {
	if r == auth.RoleOperator {
		return "operador"
	}
	return string(r)
}
