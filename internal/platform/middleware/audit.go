package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/pts/internal/platform/apperr"
	"github.com/ehr/pts/internal/platform/auth"
)

const apiPrefix = "/api/v1/"

// AuditEntry records who touched which record, how, and with what outcome.
type AuditEntry struct {
	Timestamp  time.Time
	RequestID  string
	UserID     string
	Role       string
	Resource   string // patients, plans, users, admin, me
	ResourceID string
	PatientID  string
	Action     string // read, list, create, update, delete
	Method     string
	Path       string
	IPAddress  string
	UserAgent  string
	StatusCode int
}

// AuditRecorder receives every audit entry after it is logged.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs one "record_access" event per /api/v1 request once the handler
// has run, so the entry carries the final status. Patient data never enters
// the entry; only identifiers do.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, apiPrefix) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				RequestID:  RequestIDFrom(c),
				Method:     req.Method,
				Path:       path,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
			}
			if err != nil && !c.Response().Committed {
				entry.StatusCode = apperr.ToHTTP(err).Code
			}

			// The auth middleware runs inside this one and replaces the request.
			if ac := auth.FromContext(c.Request().Context()); ac.Authenticated() {
				entry.UserID = ac.UserID().String()
				entry.Role = string(ac.Role())
			}
			describeTarget(&entry, path, c.QueryParam("patient_id"))

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			evt := logger.Info()
			if entry.StatusCode == http.StatusForbidden || entry.StatusCode == http.StatusUnauthorized {
				evt = logger.Warn()
			}
			evt.
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

// knownResources bounds Resource, which is used as a metric label and is
// computed before authentication.
var knownResources = map[string]bool{
	"patients": true,
	"plans":    true,
	"users":    true,
	"admin":    true,
	"me":       true,
}

// describeTarget fills Resource, ResourceID, PatientID and Action from the
// request path. Recognised shapes:
//
//	/api/v1/patients[/{id}]
//	/api/v1/patients/{id}/plans
//	/api/v1/plans[/{id}[/document]]
//	/api/v1/users[/{id}/role]
func describeTarget(e *AuditEntry, path, patientQuery string) {
	segs := strings.Split(strings.Trim(strings.TrimPrefix(path, apiPrefix), "/"), "/")
	e.Resource = segs[0]
	if !knownResources[e.Resource] {
		e.Resource = "unknown"
	}

	var id string
	if len(segs) > 1 && isUUID(segs[1]) {
		id = segs[1]
	}

	switch {
	case e.Resource == "patients" && len(segs) > 2 && segs[2] == "plans":
		e.Resource = "plans"
		e.PatientID = id
	case e.Resource == "patients":
		e.ResourceID = id
		e.PatientID = id
	default:
		e.ResourceID = id
	}
	if e.PatientID == "" && isUUID(patientQuery) {
		e.PatientID = patientQuery
	}

	e.Action = httpMethodToAction(e.Method)
	if e.Action == "read" && e.ResourceID == "" {
		e.Action = "list"
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

func isUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
