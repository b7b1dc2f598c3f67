package plan

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/pts/internal/platform/apperr"
	"github.com/ehr/pts/pkg/calendar"
)

// Area is the professional area a plan belongs to.
type Area string

const (
	AreaPsychopedagogy      Area = "Psicopedagogia"
	AreaPhysiotherapy       Area = "Fisioterapia"
	AreaSpeechTherapy       Area = "Fonoaudiologia"
	AreaOccupationalTherapy Area = "Terapia Ocupacional"
	AreaSocialWork          Area = "Serviço Social"
	AreaPsychology          Area = "Psicologia"
	AreaOther               Area = "Outro"
)

var areas = []Area{
	AreaPsychopedagogy, AreaPhysiotherapy, AreaSpeechTherapy, AreaOccupationalTherapy,
	AreaSocialWork, AreaPsychology, AreaOther,
}

// Areas returns the accepted areas in display order.
func Areas() []Area { return append([]Area(nil), areas...) }

func ParseArea(s string) (Area, error) {
	for _, a := range areas {
		if string(a) == s {
			return a, nil
		}
	}
	return "", apperr.Validation("area", "must be one of %s", join(areas))
}

// Period is the attendance shift.
type Period string

const (
	PeriodMorning   Period = "Matutino"
	PeriodAfternoon Period = "Vespertino"
	PeriodFullDay   Period = "Integral"
	PeriodExtended  Period = "Turno Extendido"
)

var periods = []Period{PeriodMorning, PeriodAfternoon, PeriodFullDay, PeriodExtended}

func Periods() []Period { return append([]Period(nil), periods...) }

func ParsePeriod(s string) (Period, error) {
	for _, p := range periods {
		if string(p) == s {
			return p, nil
		}
	}
	return "", apperr.Validation("period", "must be one of %s", join(periods))
}

func join[T ~string](vs []T) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// PatientSnapshot is copied from the patient when the plan is created and
// never refreshed afterwards.
type PatientSnapshot struct {
	Name               string  `db:"paciente_nome" json:"name"`
	Age                *int    `db:"paciente_idade" json:"age"`
	ClassificationCode *string `db:"paciente_cid" json:"classification_code"`
	Diagnosis          *string `db:"paciente_diagnostico" json:"diagnosis"`
}

// Sections are the free-text parts of a plan. They are stored as given,
// empty strings included.
type Sections struct {
	Professional            string `db:"profissional" json:"professional"`
	Medications             string `db:"medicamentos" json:"medications"`
	CaseDescription         string `db:"descricao_caso" json:"case_description"`
	GeneralObjectives       string `db:"objetivos_gerais" json:"general_objectives"`
	ShortTermObjectives     string `db:"objetivos_curto_prazo" json:"short_term_objectives"`
	MediumTermObjectives    string `db:"objetivos_medio_prazo" json:"medium_term_objectives"`
	LongTermObjectives      string `db:"objetivos_longo_prazo" json:"long_term_objectives"`
	FamilyResponsibilities  string `db:"responsabilidades_familia" json:"family_responsibilities"`
	CrossSectorCare         string `db:"atendimento_intersetorial" json:"cross_sector_care"`
	SchoolApproach          string `db:"abordagem_escolar" json:"school_approach"`
	InternalReferrals       string `db:"encaminhamentos_internos" json:"internal_referrals"`
	ExternalReferrals       string `db:"encaminhamentos_externos" json:"external_referrals"`
	ProfessionalSignature   string `db:"assinatura_profissional" json:"professional_signature"`
	Stamp                   string `db:"carimbo" json:"stamp"`
	ResponsibleProfessional string `db:"profissional_responsavel" json:"responsible_professional"`
}

// TherapeuticPlan maps to the pts table.
type TherapeuticPlan struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	PatientID       uuid.UUID       `db:"paciente_id" json:"patient_id"`
	PatientSnapshot PatientSnapshot `json:"patient_snapshot"`
	CreationDate    calendar.Date   `db:"data_criacao" json:"creation_date"`
	Area            Area            `db:"area" json:"area"`
	Period          Period          `db:"periodo" json:"period"`
	Sections
	SignatureDate calendar.Date `db:"data_assinatura_prof" json:"signature_date"`
	OwnerUserID   uuid.UUID     `db:"usuario_id" json:"owner_user_id"`
	CreatedAt     time.Time     `db:"criado_em" json:"created_at"`
	UpdatedAt     time.Time     `db:"atualizado_em" json:"updated_at"`
}

// Form is the editable part of a plan as sent by POST and PUT.
type Form struct {
	Area   string `json:"area"`
	Period string `json:"period"`
	Sections
}
