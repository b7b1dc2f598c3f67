package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/pts/internal/platform/apperr"
	"github.com/ehr/pts/internal/platform/auth"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RoleFor implements auth.ProfileResolver.
func (s *Service) RoleFor(ctx context.Context, userID uuid.UUID) (auth.Role, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", auth.ErrNoProfile
	}
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (s *Service) Me(ctx context.Context, ac *auth.Context) (*Me, error) {
	if err := ac.Require(); err != nil {
		return nil, err
	}
	id := ac.Identity()
	me := &Me{ID: id.UserID, Email: id.Email, Role: id.Role}

	u, err := s.repo.GetByID(ctx, id.UserID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		me.HasProfile = true
		me.DisplayName = u.DisplayName
		if me.Email == "" {
			me.Email = u.Email
		}
	}
	return me, nil
}

func (s *Service) List(ctx context.Context, ac *auth.Context) ([]*User, error) {
	if err := requireAdmin(ac, "list users"); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *Service) Create(ctx context.Context, ac *auth.Context, in CreateInput) (*User, error) {
	if err := requireAdmin(ac, "create user"); err != nil {
		return nil, err
	}
	return s.Provision(ctx, in)
}

// Provision creates a profile without an authorization check. It backs the
// `user create` command that bootstraps the first administrator.
func (s *Service) Provision(ctx context.Context, in CreateInput) (*User, error) {
	id, err := uuid.Parse(strings.TrimSpace(in.ID))
	if err != nil || id == uuid.Nil {
		return nil, apperr.Validation("id", "must be the identity provider user id")
	}
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("email", "invalid email address")
	}
	role := auth.RoleOperator
	if in.Role != "" {
		if role, err = auth.ParseRole(in.Role); err != nil {
			return nil, apperr.Validation("role", "must be admin or operator")
		}
	}

	u := &User{
		ID:          id,
		Email:       email,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Role:        role,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetRole changes another user's role. Callers cannot change their own.
func (s *Service) SetRole(ctx context.Context, ac *auth.Context, id uuid.UUID, role string) (*User, error) {
	if err := requireAdmin(ac, "change role"); err != nil {
		return nil, err
	}
	r, err := auth.ParseRole(role)
	if err != nil {
		return nil, apperr.Validation("role", "must be admin or operator")
	}
	if id == ac.UserID() {
		return nil, apperr.Forbidden("change own role")
	}
	return s.repo.UpdateRole(ctx, id, r)
}

// Count is unscoped; callers gate it.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func requireAdmin(ac *auth.Context, action string) error {
	if err := ac.Require(); err != nil {
		return err
	}
	if !ac.CanSeeAll() {
		return apperr.Forbidden(action)
	}
	return nil
}
