package plan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/pts/internal/domain/patient"
	"github.com/ehr/pts/internal/platform/apperr"
	"github.com/ehr/pts/internal/platform/auth"
	"github.com/ehr/pts/internal/platform/metrics"
)

// PatientSource resolves a patient within the caller's read scope.
// *patient.Service satisfies it.
type PatientSource interface {
	GetPatient(ctx context.Context, ac *auth.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	repo     Repository
	patients PatientSource
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	loc      *time.Location
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock sets the wall clock and the institution time zone that decides
// the creation and signature dates.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(s *Service) {
		s.now = now
		s.loc = loc
	}
}

func NewService(repo Repository, patients PatientSource, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		patients: patients,
		logger:   zerolog.Nop(),
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePlan snapshots the patient as it is now and persists a new plan
// owned by the caller. Nothing is written if validation fails.
func (s *Service) CreatePlan(ctx context.Context, ac *auth.Context, patientID uuid.UUID, f Form) (*TherapeuticPlan, error) {
	if err := ac.Require(); err != nil {
		return nil, err
	}
	p, err := s.patients.GetPatient(ctx, ac, patientID)
	if err != nil {
		return nil, err
	}
	plan, err := Assemble(p, f, ac.UserID(), s.now(), s.loc)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, err
	}
	s.metrics.RecordOp("plan", "create")
	s.logger.Info().
		Str("plan_id", plan.ID.String()).
		Str("patient_id", patientID.String()).
		Str("area", string(plan.Area)).
		Msg("plan created")
	return plan, nil
}

// GetPlan reports plans outside the caller's scope as not found.
func (s *Service) GetPlan(ctx context.Context, ac *auth.Context, id uuid.UUID) (*TherapeuticPlan, error) {
	if err := ac.Require(); err != nil {
		return nil, err
	}
	plan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ac.ScopeFilter(plan.OwnerUserID) {
		return nil, apperr.NotFound("plan", id)
	}
	return plan, nil
}

// ListPlans returns the caller's visible plans, newest first. Any owner in
// f is replaced by the caller's own scope.
func (s *Service) ListPlans(ctx context.Context, ac *auth.Context, f ListFilter) ([]*TherapeuticPlan, error) {
	if err := ac.Require(); err != nil {
		return nil, err
	}
	f.OwnerID = ac.OwnerFilter()
	plans, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	visible := plans[:0]
	for _, p := range plans {
		if ac.ScopeFilter(p.OwnerUserID) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

// UpdatePlan rewrites the editable sections. The patient snapshot is never
// refreshed.
func (s *Service) UpdatePlan(ctx context.Context, ac *auth.Context, id uuid.UUID, f Form) (*TherapeuticPlan, error) {
	plan, err := s.mutable(ctx, ac, id, "update plan")
	if err != nil {
		return nil, err
	}
	if err := ApplyForm(plan, f, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, err
	}
	s.metrics.RecordOp("plan", "update")
	return plan, nil
}

func (s *Service) DeletePlan(ctx context.Context, ac *auth.Context, id uuid.UUID) error {
	if _, err := s.mutable(ctx, ac, id, "delete plan"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.RecordOp("plan", "delete")
	s.logger.Info().Str("plan_id", id.String()).Str("by", ac.UserID().String()).Msg("plan deleted")
	return nil
}

// PlanDocument pairs a visible plan with its patient's current record for
// the export renderer.
func (s *Service) PlanDocument(ctx context.Context, ac *auth.Context, id uuid.UUID) (*Document, error) {
	plan, err := s.GetPlan(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	doc := &Document{Plan: plan}
	p, err := s.patients.GetPatient(ctx, ac, plan.PatientID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		doc.Patient = p
	}
	return doc, nil
}

// CountCreatedSince is unscoped; callers gate it.
func (s *Service) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return s.repo.CountCreatedSince(ctx, since)
}

func (s *Service) mutable(ctx context.Context, ac *auth.Context, id uuid.UUID, action string) (*TherapeuticPlan, error) {
	if err := ac.Require(); err != nil {
		return nil, err
	}
	plan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ac.CanMutate(plan.OwnerUserID) {
		return nil, apperr.Forbidden(action)
	}
	return plan, nil
}
