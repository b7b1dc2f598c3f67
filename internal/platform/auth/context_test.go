package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/pts/internal/platform/apperr"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"admin", RoleAdmin, false},
		{"operator", RoleOperator, false},
		{"operador", RoleOperator, false},
		{"superuser", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContext_Admin(t *testing.T) {
	ac := NewContext(Identity{UserID: uuid.New(), Role: RoleAdmin})
	other := uuid.New()

	if !ac.CanSeeAll() {
		t.Error("admin should see all")
	}
	if !ac.ScopeFilter(other) {
		t.Error("admin scope should include other owners")
	}
	if !ac.CanMutate(other) {
		t.Error("admin should mutate other owners' records")
	}
	if ac.OwnerFilter() != nil {
		t.Error("admin list filter should be unrestricted")
	}
}

func TestContext_Operator(t *testing.T) {
	me := uuid.New()
	ac := NewContext(Identity{UserID: me, Role: RoleOperator})

	if ac.CanSeeAll() {
		t.Error("operator should not see all")
	}
	if !ac.ScopeFilter(me) || !ac.CanMutate(me) {
		t.Error("operator should see and mutate own records")
	}
	if ac.ScopeFilter(uuid.New()) || ac.CanMutate(uuid.New()) {
		t.Error("operator should not see or mutate other owners' records")
	}
	if f := ac.OwnerFilter(); f == nil || *f != me {
		t.Errorf("operator list filter = %v, want %s", f, me)
	}
}

func TestContext_Anonymous(t *testing.T) {
	ac := Anonymous()

	if err := ac.Require(); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if ac.CanSeeAll() || ac.ScopeFilter(uuid.Nil) || ac.CanMutate(uuid.Nil) {
		t.Error("anonymous caller should have no access, even to nil owners")
	}
	if ac.UserID() != uuid.Nil {
		t.Error("anonymous caller should have no user id")
	}
}

func TestContext_NilIsAnonymous(t *testing.T) {
	var ac *Context
	if ac.Authenticated() {
		t.Fatal("nil context should not be authenticated")
	}
	if err := ac.Require(); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()).Authenticated() {
		t.Error("empty context should yield anonymous")
	}

	id := Identity{UserID: uuid.New(), Email: "op@example.org", Role: RoleOperator}
	ctx := WithContext(context.Background(), NewContext(id))
	if got := FromContext(ctx).Identity(); got != id {
		t.Errorf("FromContext identity = %+v, want %+v", got, id)
	}
}
