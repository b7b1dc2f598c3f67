package plan

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows a listing; nil fields do not restrict.
type ListFilter struct {
	OwnerID   *uuid.UUID
	PatientID *uuid.UUID
}

// Repository errors are classified like the patient repository's.
type Repository interface {
	Create(ctx context.Context, p *TherapeuticPlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*TherapeuticPlan, error)
	// Update writes the editable columns only.
	Update(ctx context.Context, p *TherapeuticPlan) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns plans newest first.
	List(ctx context.Context, f ListFilter) ([]*TherapeuticPlan, error)
	CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}
