package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/pts/internal/platform/apperr"
	"github.com/ehr/pts/internal/platform/auth"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestContext(method, target string, opts ...func(*http.Request) *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	for _, opt := range opts {
		req = opt(req)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func withIdentity(id uuid.UUID, role auth.Role) func(*http.Request) *http.Request {
	return func(req *http.Request) *http.Request {
		ac := auth.NewContext(auth.Identity{UserID: id, Role: role})
		return req.WithContext(auth.WithContext(req.Context(), ac))
	}
}

func TestAudit_PatientRead(t *testing.T) {
	rec := &mockRecorder{}
	uid := uuid.New()
	patientID := uuid.New().String()

	c, _ := newTestContext(http.MethodGet, "/api/v1/patients/"+patientID, withIdentity(uid, auth.RoleOperator))
	c.Set("request_id", "req-abc")

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 audit entry, got %d", rec.count())
	}
	entry := rec.last()
	if entry.UserID != uid.String() || entry.Role != "operator" {
		t.Errorf("unexpected caller %q %q", entry.UserID, entry.Role)
	}
	if entry.Resource != "patients" || entry.ResourceID != patientID || entry.PatientID != patientID {
		t.Errorf("unexpected target %+v", entry)
	}
	if entry.Action != "read" {
		t.Errorf("expected action read, got %q", entry.Action)
	}
	if entry.RequestID != "req-abc" {
		t.Errorf("expected request_id req-abc, got %q", entry.RequestID)
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", entry.StatusCode)
	}
}

func TestAudit_NestedPlanCreate(t *testing.T) {
	rec := &mockRecorder{}
	patientID := uuid.New().String()

	c, _ := newTestContext(http.MethodPost, "/api/v1/patients/"+patientID+"/plans", withIdentity(uuid.New(), auth.RoleAdmin))
	_ = Audit(zerolog.Nop(), rec)(okHandler)(c)

	entry := rec.last()
	if entry.Resource != "plans" || entry.PatientID != patientID || entry.ResourceID != "" {
		t.Errorf("unexpected target %+v", entry)
	}
	if entry.Action != "create" {
		t.Errorf("expected create, got %q", entry.Action)
	}
}

func TestAudit_PlanDocumentAndList(t *testing.T) {
	rec := &mockRecorder{}
	planID := uuid.New().String()
	patientID := uuid.New().String()
	mw := Audit(zerolog.Nop(), rec)

	c, _ := newTestContext(http.MethodGet, "/api/v1/plans/"+planID+"/document")
	_ = mw(okHandler)(c)
	if e := rec.last(); e.Resource != "plans" || e.ResourceID != planID || e.Action != "read" {
		t.Errorf("unexpected document entry %+v", e)
	}

	c, _ = newTestContext(http.MethodGet, "/api/v1/plans?patient_id="+patientID)
	_ = mw(okHandler)(c)
	if e := rec.last(); e.Action != "list" || e.PatientID != patientID {
		t.Errorf("unexpected list entry %+v", e)
	}
}

func TestAudit_ErrorStatus(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodDelete, "/api/v1/plans/"+uuid.NewString(), withIdentity(uuid.New(), auth.RoleOperator))

	err := Audit(zerolog.Nop(), rec)(func(echo.Context) error {
		return apperr.Forbidden("delete plan")
	})(c)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected handler error to pass through, got %v", err)
	}
	entry := rec.last()
	if entry.Action != "delete" || entry.StatusCode != http.StatusForbidden {
		t.Errorf("expected forbidden delete, got %q %d", entry.Action, entry.StatusCode)
	}
}

func TestAudit_AnonymousHasNoUser(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodGet, "/api/v1/patients")
	_ = Audit(zerolog.Nop(), rec)(okHandler)(c)

	if e := rec.last(); e.UserID != "" || e.Role != "" || e.Action != "list" {
		t.Errorf("unexpected anonymous entry %+v", e)
	}
}

func TestAudit_SkipsNonAPIPaths(t *testing.T) {
	rec := &mockRecorder{}
	for _, path := range []string{"/health", "/health/db", "/metrics", "/api/v2/patients"} {
		c, _ := newTestContext(http.MethodGet, path)
		if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", path, err)
		}
	}
	if rec.count() != 0 {
		t.Errorf("expected no audit entries, got %d", rec.count())
	}
}

func TestAudit_RecorderErrorDoesNotBreakRequest(t *testing.T) {
	rec := &mockRecorder{err: errors.New("sink unavailable")}
	c, resp := newTestContext(http.MethodGet, "/api/v1/me")

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("recorder failure should not fail the request: %v", err)
	}
	if resp.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.Code)
	}
}

func TestAudit_CapturesIPAndUserAgent(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodGet, "/api/v1/admin/stats", func(req *http.Request) *http.Request {
		req.Header.Set("X-Real-IP", "203.0.113.7")
		req.Header.Set("User-Agent", "pts-frontend/1.0")
		return req
	})
	_ = Audit(zerolog.Nop(), rec)(okHandler)(c)

	e := rec.last()
	if e.IPAddress != "203.0.113.7" || e.UserAgent != "pts-frontend/1.0" {
		t.Errorf("unexpected client info %q %q", e.IPAddress, e.UserAgent)
	}
	if e.Resource != "admin" {
		t.Errorf("expected admin resource, got %q", e.Resource)
	}
}

func TestHttpMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:    "read",
		http.MethodHead:   "read",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
	}
	for method, want := range tests {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("httpMethodToAction(%s) = %q, want %q", method, got, want)
		}
	}
}

func TestAudit_UnknownResourceIsCollapsed(t *testing.T) {
	rec := &mockRecorder{}
	for _, path := range []string{"/api/v1/junk1", "/api/v1/junk2/" + uuid.NewString(), "/api/v1/", "/api/v1/Patients"} {
		c, _ := newTestContext(http.MethodGet, path)
		_ = Audit(zerolog.Nop(), rec)(okHandler)(c)
		if got := rec.last().Resource; got != "unknown" {
			t.Errorf("%s: expected resource unknown, got %q", path, got)
		}
	}

	for _, path := range []string{"/api/v1/patients", "/api/v1/plans", "/api/v1/users", "/api/v1/admin/stats", "/api/v1/me"} {
		c, _ := newTestContext(http.MethodGet, path)
		_ = Audit(zerolog.Nop(), rec)(okHandler)(c)
		if got := rec.last().Resource; got == "unknown" {
			t.Errorf("%s: known resource collapsed to unknown", path)
		}
	}
}
