package patient

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a listing. A nil OwnerID means every owner.
type ListFilter struct {
	OwnerID *uuid.UUID
}

// Repository errors are classified: a missing row is apperr.ErrNotFound,
// any other driver failure apperr.ErrPersistence.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns patients ordered by name ascending.
	List(ctx context.Context, f ListFilter) ([]*Patient, error)
	Count(ctx context.Context, f ListFilter) (int, error)
}
