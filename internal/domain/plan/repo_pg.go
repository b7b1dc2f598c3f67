package plan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ehr/pts/internal/platform/apperr"
	"github.com/ehr/pts/internal/platform/db"
)

type repoPG struct {
	q db.Queryable
}

func NewRepo(q db.Queryable) Repository {
	return &repoPG{q: q}
}

// Legacy rows may hold NULL in any free-text column.
const planCols = `id, paciente_id,
	COALESCE(paciente_nome, ''), paciente_idade, paciente_cid, paciente_diagnostico,
	data_criacao, COALESCE(area, ''), COALESCE(periodo, ''),
	COALESCE(profissional, ''), COALESCE(medicamentos, ''), COALESCE(descricao_caso, ''),
	COALESCE(objetivos_gerais, ''), COALESCE(objetivos_curto_prazo, ''),
	COALESCE(objetivos_medio_prazo, ''), COALESCE(objetivos_longo_prazo, ''),
	COALESCE(responsabilidades_familia, ''), COALESCE(atendimento_intersetorial, ''),
	COALESCE(abordagem_escolar, ''), COALESCE(encaminhamentos_internos, ''),
	COALESCE(encaminhamentos_externos, ''), COALESCE(assinatura_profissional, ''),
	COALESCE(carimbo, ''), COALESCE(profissional_responsavel, ''),
	data_assinatura_prof, usuario_id, criado_em, atualizado_em`

func (r *repoPG) Create(ctx context.Context, p *TherapeuticPlan) error {
	p.ID = uuid.New()
	s := p.Sections
	_, err := r.q.Exec(ctx, `
		INSERT INTO pts (
			id, paciente_id, paciente_nome, paciente_idade, paciente_cid, paciente_diagnostico,
			data_criacao, area, periodo,
			profissional, medicamentos, descricao_caso,
			objetivos_gerais, objetivos_curto_prazo, objetivos_medio_prazo, objetivos_longo_prazo,
			responsabilidades_familia, atendimento_intersetorial, abordagem_escolar,
			encaminhamentos_internos, encaminhamentos_externos,
			assinatura_profissional, carimbo, profissional_responsavel,
			data_assinatura_prof, usuario_id, criado_em, atualizado_em
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19,
			$20, $21,
			$22, $23, $24,
			$25, $26, $27, $28
		)`,
		p.ID, p.PatientID, p.PatientSnapshot.Name, p.PatientSnapshot.Age,
		p.PatientSnapshot.ClassificationCode, p.PatientSnapshot.Diagnosis,
		db.DateParam(&p.CreationDate), string(p.Area), string(p.Period),
		s.Professional, s.Medications, s.CaseDescription,
		s.GeneralObjectives, s.ShortTermObjectives, s.MediumTermObjectives, s.LongTermObjectives,
		s.FamilyResponsibilities, s.CrossSectorCare, s.SchoolApproach,
		s.InternalReferrals, s.ExternalReferrals,
		s.ProfessionalSignature, s.Stamp, s.ResponsibleProfessional,
		db.DateParam(&p.SignatureDate), p.OwnerUserID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return apperr.Persistence("plan create", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*TherapeuticPlan, error) {
	p, err := scanPlan(r.q.QueryRow(ctx, `SELECT `+planCols+` FROM pts WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("plan", id)
	}
	if err != nil {
		return nil, apperr.Persistence("plan get", err)
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *TherapeuticPlan) error {
	s := p.Sections
	tag, err := r.q.Exec(ctx, `
		UPDATE pts SET
			area = $2, periodo = $3,
			profissional = $4, medicamentos = $5, descricao_caso = $6,
			objetivos_gerais = $7, objetivos_curto_prazo = $8, objetivos_medio_prazo = $9, objetivos_longo_prazo = $10,
			responsabilidades_familia = $11, atendimento_intersetorial = $12, abordagem_escolar = $13,
			encaminhamentos_internos = $14, encaminhamentos_externos = $15,
			assinatura_profissional = $16, carimbo = $17, profissional_responsavel = $18,
			atualizado_em = $19
		WHERE id = $1`,
		p.ID, string(p.Area), string(p.Period),
		s.Professional, s.Medications, s.CaseDescription,
		s.GeneralObjectives, s.ShortTermObjectives, s.MediumTermObjectives, s.LongTermObjectives,
		s.FamilyResponsibilities, s.CrossSectorCare, s.SchoolApproach,
		s.InternalReferrals, s.ExternalReferrals,
		s.ProfessionalSignature, s.Stamp, s.ResponsibleProfessional,
		p.UpdatedAt,
	)
	if err != nil {
		return apperr.Persistence("plan update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("plan", p.ID)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM pts WHERE id = $1`, id)
	if err != nil {
		return apperr.Persistence("plan delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("plan", id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*TherapeuticPlan, error) {
	var where []string
	var args []interface{}
	if f.OwnerID != nil {
		args = append(args, *f.OwnerID)
		where = append(where, fmt.Sprintf("usuario_id = $%d", len(args)))
	}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where = append(where, fmt.Sprintf("paciente_id = $%d", len(args)))
	}
	query := `SELECT ` + planCols + ` FROM pts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY criado_em DESC, id`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Persistence("plan list", err)
	}
	defer rows.Close()

	var plans []*TherapeuticPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, apperr.Persistence("plan list", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("plan list", err)
	}
	return plans, nil
}

func (r *repoPG) CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM pts WHERE paciente_id = $1`, patientID).Scan(&n); err != nil {
		return 0, apperr.Persistence("plan count by patient", err)
	}
	return n, nil
}

func (r *repoPG) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM pts WHERE criado_em >= $1`, since).Scan(&n); err != nil {
		return 0, apperr.Persistence("plan count created since", err)
	}
	return n, nil
}

func scanPlan(row pgx.Row) (*TherapeuticPlan, error) {
	var p TherapeuticPlan
	var created, signed pgtype.Date
	var area, period string
	s := &p.Sections
	err := row.Scan(
		&p.ID, &p.PatientID,
		&p.PatientSnapshot.Name, &p.PatientSnapshot.Age, &p.PatientSnapshot.ClassificationCode, &p.PatientSnapshot.Diagnosis,
		&created, &area, &period,
		&s.Professional, &s.Medications, &s.CaseDescription,
		&s.GeneralObjectives, &s.ShortTermObjectives, &s.MediumTermObjectives, &s.LongTermObjectives,
		&s.FamilyResponsibilities, &s.CrossSectorCare, &s.SchoolApproach,
		&s.InternalReferrals, &s.ExternalReferrals,
		&s.ProfessionalSignature, &s.Stamp, &s.ResponsibleProfessional,
		&signed, &p.OwnerUserID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if d := db.DateValue(created); d != nil {
		p.CreationDate = *d
	}
	if d := db.DateValue(signed); d != nil {
		p.SignatureDate = *d
	}
	p.Area = Area(area)
	p.Period = Period(period)
	return &p, nil
}
