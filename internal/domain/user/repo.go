package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/pts/internal/platform/auth"
)

// Repository errors are already classified: a missing row is
// apperr.ErrNotFound, anything else from the driver apperr.ErrPersistence.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Create(ctx context.Context, u *User) error
	UpdateRole(ctx context.Context, id uuid.UUID, role auth.Role) (*User, error)
	Count(ctx context.Context) (int, error)
}
