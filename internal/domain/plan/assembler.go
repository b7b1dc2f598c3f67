package plan

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/pts/internal/domain/patient"
	"github.com/ehr/pts/pkg/calendar"
)

// Document is what the export renderer receives: a finalized plan and the
// patient's current record, which is nil once the patient is deleted or out
// of the caller's scope.
type Document struct {
	Plan    *TherapeuticPlan `json:"plan"`
	Patient *patient.Patient `json:"patient"`
}

// validate checks the enumerated fields, area first.
func (f Form) validate() (Area, Period, error) {
	a, err := ParseArea(f.Area)
	if err != nil {
		return "", "", err
	}
	p, err := ParsePeriod(f.Period)
	if err != nil {
		return "", "", err
	}
	return a, p, nil
}

// Snapshot copies the patient's identifying fields. The age is recomputed
// against today; a stored age is used only if the birth date cannot be
// evaluated.
func Snapshot(p *patient.Patient, today calendar.Date) PatientSnapshot {
	s := PatientSnapshot{
		Name:               p.Name,
		Age:                copyInt(p.Age),
		ClassificationCode: copyString(p.ClassificationCode),
		Diagnosis:          copyString(p.Diagnosis),
	}
	if p.BirthDate != nil {
		if age, err := calendar.Age(p.BirthDate, today); err == nil {
			s.Age = &age
		}
	}
	return s
}

// Assemble builds a new plan for p from f. Creation and signature dates are
// today's institution-local date; both timestamps are now.
func Assemble(p *patient.Patient, f Form, owner uuid.UUID, now time.Time, loc *time.Location) (*TherapeuticPlan, error) {
	area, period, err := f.validate()
	if err != nil {
		return nil, err
	}
	today := calendar.Today(now, loc)
	return &TherapeuticPlan{
		PatientID:       p.ID,
		PatientSnapshot: Snapshot(p, today),
		CreationDate:    today,
		Area:            area,
		Period:          period,
		Sections:        f.Sections,
		SignatureDate:   today,
		OwnerUserID:     owner,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ApplyForm replaces the editable parts of an existing plan. The snapshot,
// patient, owner and both dates are left alone. On error plan is unchanged.
func ApplyForm(plan *TherapeuticPlan, f Form, now time.Time) error {
	area, period, err := f.validate()
	if err != nil {
		return err
	}
	plan.Area = area
	plan.Period = period
	plan.Sections = f.Sections
	plan.UpdatedAt = now
	return nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
