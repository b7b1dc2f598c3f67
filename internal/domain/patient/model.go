package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/pts/internal/platform/apperr"
	"github.com/ehr/pts/pkg/calendar"
)

// Patient maps to the pacientes table. Age is derived from BirthDate at
// every write and is nil exactly when BirthDate is nil.
type Patient struct {
	ID                 uuid.UUID      `db:"id" json:"id"`
	Name               string         `db:"nome" json:"name"`
	BirthDate          *calendar.Date `db:"data_nascimento" json:"birth_date"`
	Age                *int           `db:"idade" json:"age"`
	ClassificationCode *string        `db:"cid" json:"classification_code"`
	Diagnosis          *string        `db:"diagnostico" json:"diagnosis"`
	OwnerUserID        uuid.UUID      `db:"usuario_id" json:"owner_user_id"`
	CreatedAt          time.Time      `db:"criado_em" json:"created_at"`
	UpdatedAt          time.Time      `db:"atualizado_em" json:"updated_at"`
}

// Input is the writable part of a patient, as sent by POST and PUT.
type Input struct {
	Name               string  `json:"name"`
	BirthDate          *string `json:"birth_date"`
	ClassificationCode *string `json:"classification_code"`
	Diagnosis          *string `json:"diagnosis"`
}

// normalized holds a validated Input.
type normalized struct {
	name      string
	birth     *calendar.Date
	code      *string
	diagnosis *string
}

func (in Input) normalize() (normalized, error) {
	var n normalized
	n.name = strings.TrimSpace(in.Name)
	if n.name == "" {
		return n, apperr.Validation("name", "is required")
	}
	if in.BirthDate != nil && strings.TrimSpace(*in.BirthDate) != "" {
		d, err := calendar.ParseDate(strings.TrimSpace(*in.BirthDate))
		if err != nil {
			return n, apperr.Validation("birth_date", "must be a date in YYYY-MM-DD form")
		}
		n.birth = &d
	}
	n.code = optional(in.ClassificationCode)
	n.diagnosis = optional(in.Diagnosis)
	return n, nil
}

// optional trims s and maps blank to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
