package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/pts/internal/platform/apperr"
	"github.com/ehr/pts/internal/platform/auth"
	"github.com/ehr/pts/internal/platform/metrics"
	"github.com/ehr/pts/pkg/calendar"
)

// PlanCounter reports how many plans reference a patient. Deleting a
// patient leaves those plans in place; the count is only logged.
type PlanCounter interface {
	CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error)
}

type Service struct {
	repo    Repository
	plans   PlanCounter
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	loc     *time.Location
}

type Option func(*Service)

func WithPlanCounter(pc PlanCounter) Option { return func(s *Service) { s.plans = pc } }

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock sets the wall clock and the institution time zone used to
// decide what "today" is when deriving ages.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(s *Service) {
		s.now = now
		s.loc = loc
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: zerolog.Nop(),
		now:    time.Now,
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the institution-local calendar date.
func (s *Service) Today() calendar.Date {
	return calendar.Today(s.now(), s.loc)
}

// ListPatients returns the caller's visible patients ordered by name.
func (s *Service) ListPatients(ctx context.Context, ac *auth.Context) ([]*Patient, error) {
	if err := ac.Require(); err != nil {
		return nil, err
	}
	patients, err := s.repo.List(ctx, ListFilter{OwnerID: ac.OwnerFilter()})
	if err != nil {
		return nil, err
	}
	visible := patients[:0]
	for _, p := range patients {
		if ac.ScopeFilter(p.OwnerUserID) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

// GetPatient reports patients outside the caller's scope as not found.
func (s *Service) GetPatient(ctx context.Context, ac *auth.Context, id uuid.UUID) (*Patient, error) {
	if err := ac.Require(); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ac.ScopeFilter(p.OwnerUserID) {
		return nil, apperr.NotFound("patient", id)
	}
	return p, nil
}

func (s *Service) CreatePatient(ctx context.Context, ac *auth.Context, in Input) (*Patient, error) {
	if err := ac.Require(); err != nil {
		return nil, err
	}
	n, err := in.normalize()
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &Patient{OwnerUserID: ac.UserID(), CreatedAt: now, UpdatedAt: now}
	if err := s.apply(p, n, calendar.Today(now, s.loc)); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.metrics.RecordOp("patient", "create")
	s.logger.Info().Str("patient_id", p.ID.String()).Str("owner", p.OwnerUserID.String()).Msg("patient created")
	return p, nil
}

// UpdatePatient replaces the writable fields. The owner never changes.
func (s *Service) UpdatePatient(ctx context.Context, ac *auth.Context, id uuid.UUID, in Input) (*Patient, error) {
	p, err := s.mutable(ctx, ac, id, "update patient")
	if err != nil {
		return nil, err
	}
	n, err := in.normalize()
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.apply(p, n, calendar.Today(now, s.loc)); err != nil {
		return nil, err
	}
	p.UpdatedAt = now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.metrics.RecordOp("patient", "update")
	return p, nil
}

// DeletePatient removes the patient irreversibly. Plans that reference it
// are retained with their snapshots.
func (s *Service) DeletePatient(ctx context.Context, ac *auth.Context, id uuid.UUID) error {
	if _, err := s.mutable(ctx, ac, id, "delete patient"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.RecordOp("patient", "delete")

	evt := s.logger.Info().Str("patient_id", id.String()).Str("by", ac.UserID().String())
	if s.plans != nil {
		n, err := s.plans.CountByPatient(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("patient_id", id.String()).Msg("could not count retained plans")
		} else {
			evt = evt.Int("retained_plans", n)
		}
	}
	evt.Msg("patient deleted")
	return nil
}

// CountPatients counts the patients visible to the caller.
func (s *Service) CountPatients(ctx context.Context, ac *auth.Context) (int, error) {
	if err := ac.Require(); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, ListFilter{OwnerID: ac.OwnerFilter()})
}

// mutable loads id and checks the caller may change it: absent is NotFound,
// present but not owned is Forbidden.
func (s *Service) mutable(ctx context.Context, ac *auth.Context, id uuid.UUID, action string) (*Patient, error) {
	if err := ac.Require(); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ac.CanMutate(p.OwnerUserID) {
		return nil, apperr.Forbidden(action)
	}
	return p, nil
}

func (s *Service) apply(p *Patient, n normalized, today calendar.Date) error {
	age, err := calendar.AgePtr(n.birth, today)
	if err != nil {
		return apperr.Validation("birth_date", "cannot be after today")
	}
	p.Name = n.name
	p.BirthDate = n.birth
	p.Age = age
	p.ClassificationCode = n.code
	p.Diagnosis = n.diagnosis
	return nil
}
