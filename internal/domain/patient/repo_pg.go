package patient

import (
	"context"

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

const patientCols = `id, nome, data_nascimento, idade, cid, diagnostico, usuario_id, criado_em, atualizado_em`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.q.Exec(ctx, `
		INSERT INTO pacientes (`+patientCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Name, db.DateParam(p.BirthDate), p.Age, p.ClassificationCode, p.Diagnosis,
		p.OwnerUserID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return apperr.Persistence("patient create", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.q.QueryRow(ctx, `SELECT `+patientCols+` FROM pacientes WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("patient", id)
	}
	if err != nil {
		return nil, apperr.Persistence("patient get", err)
	}
	return p, nil
}

// Update never touches usuario_id or criado_em.
func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE pacientes SET
			nome = $2, data_nascimento = $3, idade = $4, cid = $5, diagnostico = $6, atualizado_em = $7
		WHERE id = $1`,
		p.ID, p.Name, db.DateParam(p.BirthDate), p.Age, p.ClassificationCode, p.Diagnosis, p.UpdatedAt,
	)
	if err != nil {
		return apperr.Persistence("patient update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", p.ID)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM pacientes WHERE id = $1`, id)
	if err != nil {
		return apperr.Persistence("patient delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Patient, error) {
	query := `SELECT ` + patientCols + ` FROM pacientes`
	var args []interface{}
	if f.OwnerID != nil {
		query += ` WHERE usuario_id = $1`
		args = append(args, *f.OwnerID)
	}
	query += ` ORDER BY nome ASC, id ASC`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Persistence("patient list", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, apperr.Persistence("patient list", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("patient list", err)
	}
	return patients, nil
}

func (r *repoPG) Count(ctx context.Context, f ListFilter) (int, error) {
	query := `SELECT COUNT(*) FROM pacientes`
	var args []interface{}
	if f.OwnerID != nil {
		query += ` WHERE usuario_id = $1`
		args = append(args, *f.OwnerID)
	}
	var n int
	if err := r.q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperr.Persistence("patient count", err)
	}
	return n, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var birth pgtype.Date
	err := row.Scan(
		&p.ID, &p.Name, &birth, &p.Age, &p.ClassificationCode, &p.Diagnosis,
		&p.OwnerUserID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.BirthDate = db.DateValue(birth)
	return &p, nil
}
