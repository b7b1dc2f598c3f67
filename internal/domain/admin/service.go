package admin

import (
	"context"
	"time"

	"github.com/ehr/pts/internal/platform/apperr"
	"github.com/ehr/pts/internal/platform/auth"
	"github.com/ehr/pts/pkg/calendar"
)

type PatientCounter interface {
	CountPatients(ctx context.Context, ac *auth.Context) (int, error)
}

type UserCounter interface {
	Count(ctx context.Context) (int, error)
}

type PlanCounter interface {
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}

type Service struct {
	patients PatientCounter
	users    UserCounter
	plans    PlanCounter
	now      func() time.Time
	loc      *time.Location
}

// NewService builds the dashboard service. A nil loc means UTC.
func NewService(patients PatientCounter, users UserCounter, plans PlanCounter, now func() time.Time, loc *time.Location) *Service {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{patients: patients, users: users, plans: plans, now: now, loc: loc}
}

// Stats counts every patient and user, and the plans created since the
// start of the current institution-local month.
func (s *Service) Stats(ctx context.Context, ac *auth.Context) (*Stats, error) {
	if err := ac.Require(); err != nil {
		return nil, err
	}
	if !ac.CanSeeAll() {
		return nil, apperr.Forbidden("view dashboard")
	}

	st := &Stats{MonthStart: calendar.StartOfMonth(s.now(), s.loc)}
	var err error
	if st.TotalPatients, err = s.patients.CountPatients(ctx, ac); err != nil {
		return nil, err
	}
	if st.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	if st.PlansThisMonth, err = s.plans.CountCreatedSince(ctx, st.MonthStart); err != nil {
		return nil, err
	}
	return st, nil
}
