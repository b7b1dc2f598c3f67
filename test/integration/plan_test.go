package integration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/pts/internal/domain/patient"
	"github.com/ehr/pts/internal/domain/plan"
	"github.com/ehr/pts/internal/platform/apperr"
	"github.com/ehr/pts/internal/platform/auth"
	"github.com/ehr/pts/pkg/calendar"
)

func fullSections() plan.Sections {
	return plan.Sections{
		Professional:            "Dra. Helena",
		Medications:             "Risperidona 1mg",
		CaseDescription:         "Descricao do caso",
		GeneralObjectives:       "Gerais",
		ShortTermObjectives:     "Curto",
		MediumTermObjectives:    "Medio",
		LongTermObjectives:      "Longo",
		FamilyResponsibilities:  "Familia",
		CrossSectorCare:         "Intersetorial",
		SchoolApproach:          "Escola",
		InternalReferrals:       "Internos",
		ExternalReferrals:       "Externos",
		ProfessionalSignature:   "Helena R.",
		Stamp:                   "CRP 06/1234",
		ResponsibleProfessional: "Dr. Paulo",
	}
}

func newPlan(patientID, owner uuid.UUID, createdAt time.Time) *plan.TherapeuticPlan {
	day := calendar.DateOf(createdAt)
	return &plan.TherapeuticPlan{
		PatientID: patientID,
		PatientSnapshot: plan.PatientSnapshot{
			Name:               "Joao Lima",
			Age:                intPtr(7),
			ClassificationCode: strPtr("F90"),
		},
		CreationDate:  day,
		Area:          plan.AreaPsychology,
		Period:        plan.PeriodMorning,
		Sections:      fullSections(),
		SignatureDate: day,
		OwnerUserID:   owner,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func TestPlanRepo_CreateAndGet(t *testing.T) {
	pool := newSchema(t)
	ctx := context.Background()
	repo := plan.NewRepo(pool)

	p := newPlan(uuid.New(), uuid.New(), baseTime)
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Sections != fullSections() {
		t.Errorf("sections round-trip:\n got %+v\nwant %+v", got.Sections, fullSections())
	}
	if got.PatientID != p.PatientID || got.OwnerUserID != p.OwnerUserID {
		t.Errorf("unexpected ids %s %s", got.PatientID, got.OwnerUserID)
	}
	if got.PatientSnapshot.Name != "Joao Lima" || got.PatientSnapshot.Age == nil || *got.PatientSnapshot.Age != 7 {
		t.Errorf("unexpected snapshot %+v", got.PatientSnapshot)
	}
	if got.PatientSnapshot.ClassificationCode == nil || *got.PatientSnapshot.ClassificationCode != "F90" {
		t.Errorf("unexpected snapshot code %v", got.PatientSnapshot.ClassificationCode)
	}
	if got.PatientSnapshot.Diagnosis != nil {
		t.Errorf("expected nil snapshot diagnosis, got %q", *got.PatientSnapshot.Diagnosis)
	}
	if got.Area != plan.AreaPsychology || got.Period != plan.PeriodMorning {
		t.Errorf("unexpected area/period %q %q", got.Area, got.Period)
	}
	want := calendar.Date{Year: 2024, Month: time.March, Day: 1}
	if got.CreationDate != want || got.SignatureDate != want {
		t.Errorf("dates round-trip: %v %v", got.CreationDate, got.SignatureDate)
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestPlanRepo_LongFreeText(t *testing.T) {
	pool := newSchema(t)
	ctx := context.Background()
	repo := plan.NewRepo(pool)

	p := newPlan(uuid.New(), uuid.New(), baseTime)
	p.Professional = strings.Repeat("p", 300)
	p.ProfessionalSignature = strings.Repeat("s", 300)
	p.ResponsibleProfessional = strings.Repeat("r", 300)
	p.Stamp = strings.Repeat("c", 300)
	p.PatientSnapshot.Name = strings.Repeat("n", 300)
	p.PatientSnapshot.ClassificationCode = strPtr(strings.Repeat("F", 40))
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create with long sections: %v", err)
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Sections != p.Sections || got.PatientSnapshot.Name != p.PatientSnapshot.Name {
		t.Error("long text not stored as given")
	}
}

func TestPlanRepo_LegacyNullColumns(t *testing.T) {
	pool := newSchema(t)
	ctx := context.Background()
	repo := plan.NewRepo(pool)

	id := uuid.New()
	_, err := pool.Exec(ctx, `
		INSERT INTO pts (id, paciente_id, data_criacao, data_assinatura_prof, usuario_id)
		VALUES ($1, $2, DATE '2023-05-10', DATE '2023-05-11', $3)`,
		id, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID legacy row: %v", err)
	}
	if got.Sections != (plan.Sections{}) {
		t.Errorf("expected empty sections, got %+v", got.Sections)
	}
	if got.Area != "" || got.Period != "" || got.PatientSnapshot.Name != "" {
		t.Errorf("expected empty area, period and name, got %q %q %q", got.Area, got.Period, got.PatientSnapshot.Name)
	}
	if got.PatientSnapshot.Age != nil || got.PatientSnapshot.ClassificationCode != nil || got.PatientSnapshot.Diagnosis != nil {
		t.Errorf("expected nil snapshot fields, got %+v", got.PatientSnapshot)
	}
	if got.CreationDate != (calendar.Date{Year: 2023, Month: time.May, Day: 10}) ||
		got.SignatureDate != (calendar.Date{Year: 2023, Month: time.May, Day: 11}) {
		t.Errorf("unexpected dates %v %v", got.CreationDate, got.SignatureDate)
	}

	list, err := repo.List(ctx, plan.ListFilter{})
	if err != nil || len(list) != 1 {
		t.Errorf("List with legacy row: %d, %v", len(list), err)
	}
}

func TestPlanRepo_UpdateWritesEditableColumnsOnly(t *testing.T) {
	pool := newSchema(t)
	ctx := context.Background()
	repo := plan.NewRepo(pool)

	p := newPlan(uuid.New(), uuid.New(), baseTime)
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	p.Area = plan.AreaSpeechTherapy
	p.Period = plan.PeriodExtended
	p.Medications = ""
	p.GeneralObjectives = "Novos objetivos"
	p.PatientSnapshot.Name = "Outro Nome"
	p.PatientSnapshot.Age = intPtr(30)
	p.SignatureDate = calendar.Date{Year: 2030, Month: time.January, Day: 1}
	p.UpdatedAt = baseTime.Add(24 * time.Hour)
	if err := repo.Update(ctx, p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Area != plan.AreaSpeechTherapy || got.Period != plan.PeriodExtended {
		t.Errorf("area/period not updated: %q %q", got.Area, got.Period)
	}
	if got.Medications != "" || got.GeneralObjectives != "Novos objetivos" {
		t.Errorf("sections not updated: %+v", got.Sections)
	}
	if got.PatientSnapshot.Name != "Joao Lima" || *got.PatientSnapshot.Age != 7 {
		t.Errorf("snapshot must not change on update: %+v", got.PatientSnapshot)
	}
	if got.SignatureDate != (calendar.Date{Year: 2024, Month: time.March, Day: 1}) {
		t.Errorf("signature date must not change on update: %v", got.SignatureDate)
	}
	if !got.CreatedAt.Equal(baseTime) || !got.UpdatedAt.Equal(baseTime.Add(24*time.Hour)) {
		t.Errorf("unexpected timestamps %v %v", got.CreatedAt, got.UpdatedAt)
	}

	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Update(ctx, p); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found updating a deleted plan, got %v", err)
	}
	if err := repo.Delete(ctx, p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestPlanRepo_ListOrderFiltersAndCounts(t *testing.T) {
	pool := newSchema(t)
	ctx := context.Background()
	repo := plan.NewRepo(pool)
	alice, bob := uuid.New(), uuid.New()
	p1, p2 := uuid.New(), uuid.New()

	oldest := newPlan(p1, alice, baseTime)
	middle := newPlan(p2, bob, baseTime.Add(time.Hour))
	newest := newPlan(p1, bob, baseTime.Add(2*time.Hour))
	for _, p := range []*plan.TherapeuticPlan{middle, oldest, newest} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := repo.List(ctx, plan.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	assertPlanOrder(t, "all", all, newest, middle, oldest)

	byPatient, err := repo.List(ctx, plan.ListFilter{PatientID: &p1})
	if err != nil {
		t.Fatalf("List by patient: %v", err)
	}
	assertPlanOrder(t, "patient", byPatient, newest, oldest)

	scoped, err := repo.List(ctx, plan.ListFilter{OwnerID: &bob, PatientID: &p1})
	if err != nil {
		t.Fatalf("List by owner and patient: %v", err)
	}
	assertPlanOrder(t, "owner and patient", scoped, newest)

	if n, err := repo.CountByPatient(ctx, p1); err != nil || n != 2 {
		t.Errorf("CountByPatient: %d, %v", n, err)
	}
	if n, err := repo.CountCreatedSince(ctx, baseTime.Add(30*time.Minute)); err != nil || n != 2 {
		t.Errorf("CountCreatedSince: %d, %v", n, err)
	}
}

// Deleting a patient keeps its plans and their snapshots; the document view
// then has no current patient record.
func TestPlansOutliveDeletedPatient(t *testing.T) {
	pool := newSchema(t)
	ctx := context.Background()
	planRepo := plan.NewRepo(pool)
	clock := func() time.Time { return baseTime }
	patients := patient.NewService(patient.NewRepo(pool),
		patient.WithPlanCounter(planRepo),
		patient.WithClock(clock, time.UTC),
	)
	plans := plan.NewService(planRepo, patients, plan.WithClock(clock, time.UTC))
	ac := auth.NewContext(auth.Identity{UserID: uuid.New(), Role: auth.RoleOperator})

	p, err := patients.CreatePatient(ctx, ac, patient.Input{
		Name:               "Lucas Pereira",
		BirthDate:          strPtr("2016-03-01"),
		ClassificationCode: strPtr("F84"),
	})
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	created, err := plans.CreatePlan(ctx, ac, p.ID, plan.Form{
		Area:     string(plan.AreaOccupationalTherapy),
		Period:   string(plan.PeriodAfternoon),
		Sections: fullSections(),
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	if _, err := patients.UpdatePatient(ctx, ac, p.ID, patient.Input{Name: "Lucas P. Pereira"}); err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	if err := patients.DeletePatient(ctx, ac, p.ID); err != nil {
		t.Fatalf("DeletePatient: %v", err)
	}
	if _, err := patients.GetPatient(ctx, ac, p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected patient gone, got %v", err)
	}

	kept, err := plans.GetPlan(ctx, ac, created.ID)
	if err != nil {
		t.Fatalf("GetPlan after patient delete: %v", err)
	}
	if kept.PatientID != p.ID || kept.PatientSnapshot.Name != "Lucas Pereira" {
		t.Errorf("expected original snapshot, got %s %+v", kept.PatientID, kept.PatientSnapshot)
	}
	if kept.PatientSnapshot.Age == nil || *kept.PatientSnapshot.Age != 8 {
		t.Errorf("expected snapshot age 8, got %v", kept.PatientSnapshot.Age)
	}

	doc, err := plans.PlanDocument(ctx, ac, created.ID)
	if err != nil {
		t.Fatalf("PlanDocument: %v", err)
	}
	if doc.Patient != nil {
		t.Errorf("expected no current patient, got %+v", doc.Patient)
	}

	listed, err := plans.ListPlans(ctx, ac, plan.ListFilter{PatientID: &p.ID})
	if err != nil || len(listed) != 1 {
		t.Errorf("ListPlans by deleted patient: %d, %v", len(listed), err)
	}
}

func assertPlanOrder(t *testing.T, label string, got []*plan.TherapeuticPlan, want ...*plan.TherapeuticPlan) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %d plans, got %d", label, len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("%s: position %d: got %s, want %s", label, i, got[i].ID, want[i].ID)
		}
	}
}
