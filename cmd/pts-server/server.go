package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ehr/pts/internal/config"
	"github.com/ehr/pts/internal/domain/admin"
	"github.com/ehr/pts/internal/domain/patient"
	"github.com/ehr/pts/internal/domain/plan"
	"github.com/ehr/pts/internal/domain/user"
	"github.com/ehr/pts/internal/platform/apperr"
	"github.com/ehr/pts/internal/platform/auth"
	"github.com/ehr/pts/internal/platform/db"
	"github.com/ehr/pts/internal/platform/metrics"
	"github.com/ehr/pts/internal/platform/middleware"
)

type serverDeps struct {
	cfg      *config.Config
	q        db.Queryable
	pinger   db.Pinger
	stats    func() *db.PoolStats
	logger   zerolog.Logger
	registry *prometheus.Registry
	now      func() time.Time
}

// newServer wires the repositories, services and middleware chain onto a new
// echo instance. It performs no I/O.
func newServer(d serverDeps) (*echo.Echo, error) {
	cfg, logger := d.cfg, d.logger
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	now := d.now
	if now == nil {
		now = time.Now
	}
	if d.registry == nil {
		d.registry = prometheus.NewRegistry()
	}
	m := metrics.New(d.registry)

	userSvc := user.NewService(user.NewRepo(d.q))
	planRepo := plan.NewRepo(d.q)
	patientSvc := patient.NewService(patient.NewRepo(d.q),
		patient.WithPlanCounter(planRepo),
		patient.WithLogger(logger),
		patient.WithMetrics(m),
		patient.WithClock(now, loc),
	)
	planSvc := plan.NewService(planRepo, patientSvc,
		plan.WithLogger(logger),
		plan.WithMetrics(m),
		plan.WithClock(now, loc),
	)
	adminSvc := admin.NewService(patientSvc, userSvc, planSvc, now, loc)

	var authMW echo.MiddlewareFunc
	switch cfg.ResolvedAuthMode() {
	case config.AuthModeDevelopment:
		devUser, err := cfg.DevUser()
		if err != nil {
			return nil, err
		}
		authMW = auth.DevMiddleware(devUser)
	case config.AuthModeJWT:
		verifier := auth.NewJWTVerifier(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthJWTSecret),
		})
		authMW = auth.Middleware(verifier, userSvc, logger)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.ResolvedAuthMode())
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		he := apperr.ToHTTP(err)
		// Panics were already reported by Recovery and carry no cause.
		if he.Code >= http.StatusInternalServerError && he.Internal != nil {
			hub := sentry.CurrentHub().Clone()
			hub.Scope().SetTag("request_id", middleware.RequestIDFrom(c))
			hub.Scope().SetTag("route", c.Path())
			hub.CaptureException(he.Internal)
		}
		e.DefaultHTTPErrorHandler(he, c)
	}

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(m.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	// Audit wraps auth so that rejected tokens are recorded too.
	e.Use(middleware.Audit(logger, middleware.AuditRecorderFunc(func(entry middleware.AuditEntry) error {
		m.RecordAccess(entry.Resource, entry.Action, entry.StatusCode)
		return nil
	})))
	e.Use(authMW)
	rl := middleware.DefaultRateLimitConfig()
	rl.RequestsPerSecond = cfg.RateLimitRPS
	rl.BurstSize = cfg.RateLimitBurst
	e.Use(middleware.RateLimit(rl))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(d.pinger, d.stats))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.registry)))

	api := e.Group("/api/v1")
	user.NewHandler(userSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	plan.NewHandler(planSvc).RegisterRoutes(api)
	admin.NewHandler(adminSvc).RegisterRoutes(api)

	return e, nil
}
