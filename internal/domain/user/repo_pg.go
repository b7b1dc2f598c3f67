package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ehr/pts/internal/platform/apperr"
	"github.com/ehr/pts/internal/platform/auth"
	"github.com/ehr/pts/internal/platform/db"
)

type repoPG struct {
	q db.Queryable
}

func NewRepo(q db.Queryable) Repository {
	return &repoPG{q: q}
}

const userCols = `id, email, nome, role, criado_em, atualizado_em`

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userCols+` FROM usuarios WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("user", id)
	}
	if err != nil {
		return nil, apperr.Persistence("user get", err)
	}
	return u, nil
}

func (r *repoPG) List(ctx context.Context) ([]*User, error) {
	rows, err := r.q.Query(ctx, `SELECT `+userCols+` FROM usuarios ORDER BY nome, email`)
	if err != nil {
		return nil, apperr.Persistence("user list", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Persistence("user list", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("user list", err)
	}
	return users, nil
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO usuarios (id, email, nome, role)
		VALUES ($1, $2, $3, $4)
		RETURNING criado_em, atualizado_em`,
		u.ID, u.Email, u.DisplayName, storedRole(u.Role),
	).Scan(&u.CreatedAt, &u.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "usuarios_pkey" {
			return apperr.Validation("id", "a profile already exists for this user")
		}
		return apperr.Validation("email", "email already registered")
	}
	if err != nil {
		return apperr.Persistence("user create", err)
	}
	return nil
}

func (r *repoPG) UpdateRole(ctx context.Context, id uuid.UUID, role auth.Role) (*User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `
		UPDATE usuarios SET role = $2, atualizado_em = NOW()
		WHERE id = $1
		RETURNING `+userCols, id, storedRole(role)))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("user", id)
	}
	if err != nil {
		return nil, apperr.Persistence("user update role", err)
	}
	return u, nil
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM usuarios`).Scan(&n); err != nil {
		return 0, apperr.Persistence("user count", err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	r, err := auth.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	u.Role = r
	return &u, nil
}
