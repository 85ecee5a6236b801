package http

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"yoyaku/internal/core"
	applog "yoyaku/internal/log"
	"yoyaku/internal/middleware/ratelimit"
	"yoyaku/internal/middleware/security"
	"yoyaku/internal/middleware/trace"
	"yoyaku/internal/occupancy"
	appweb "yoyaku/web"
)

// ReservationService is what the handlers need from the application layer.
type ReservationService interface {
	Create(ctx context.Context, r core.Reservation) (core.Reservation, error)
	Update(ctx context.Context, id string, r core.Reservation) (core.Reservation, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (core.Reservation, error)
	List(ctx context.Context) ([]core.Reservation, error)
	Import(ctx context.Context, rs []core.Reservation) (int, error)
	PreviewTotal(r core.Reservation) core.Reservation

	MonthlySummaries(ctx context.Context) ([]core.MonthlySummary, error)
	MonthSales(ctx context.Context, month core.MonthKey) (core.MonthSales, error)
	YearSummary(ctx context.Context, year int) (core.YearSummary, error)
	UpcomingSales(ctx context.Context) ([]core.MonthSales, error)
	Occupancy(ctx context.Context, year, month int) (occupancy.Occupancy, error)
	ExportMonth(ctx context.Context, w io.Writer, year, month int) error
	ExportYear(ctx context.Context, w io.Writer, year int) error
}

// Options configures the optional parts of a Server.
type Options struct {
	Logger *applog.Logger

	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error

	// WriteLimit throttles reservation writes per client.
	WriteLimit ratelimit.Config

	// CORSOrigins are allowed to call /api; empty allows any origin.
	CORSOrigins []string

	Now func() time.Time
}

type Server struct {
	http.Server
	svc       ReservationService
	templates *template.Template
	ready     func(ctx context.Context) error
	logger    *applog.Logger
	now       func() time.Time

	detector *security.Detector
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc ReservationService, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	t, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		svc:       svc,
		templates: t,
		ready:     opts.Ready,
		logger:    opts.Logger.WithComponent(applog.ComponentHTTP),
		now:       opts.Now,
		detector:  security.NewDetector(),
		limiter:   ratelimit.NewLimiter(opts.WriteLimit),
	}
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(static, opts.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(static fs.FS, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	limitWrites := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.With(security.StaticAssetMiddleware(3600)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// Pages and partials
	r.Get("/", s.handleIndex)
	r.Get("/ui/year-summary", s.handleYearSummaryPartial)
	r.Get("/ui/occupancy", s.handleOccupancyPartial)
	r.Get("/reservations/new", s.handleNewForm)
	r.Get("/reservations/{id}/edit", s.handleEditForm)
	r.With(limitWrites).Post("/reservations", s.handleFormCreate)
	r.With(limitWrites).Post("/reservations/{id}", s.handleFormUpdate)
	r.With(limitWrites).Post("/reservations/{id}/delete", s.handleFormDelete)

	r.Get("/export/{year}", s.handleExportYear)
	r.Get("/export/{year}/{month}", s.handleExportMonth)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(corsOptions(origins)))

		r.Get("/reservations", s.handleListReservations)
		r.With(limitWrites).Post("/reservations", s.handleCreateReservation)
		r.With(limitWrites).Put("/reservations", s.handleImportReservations)
		r.Post("/reservations/preview", s.handlePreviewReservation)
		r.Get("/reservations/{id}", s.handleGetReservation)
		r.With(limitWrites).Put("/reservations/{id}", s.handleUpdateReservation)
		r.With(limitWrites).Delete("/reservations/{id}", s.handleDeleteReservation)

		r.Get("/summaries/monthly", s.handleMonthlySummaries)
		r.Get("/summaries/months/{month}", s.handleMonthSales)
		r.Get("/summaries/years/{year}", s.handleYearSummary)
		r.Get("/summaries/upcoming", s.handleUpcomingSales)

		r.Get("/occupancy/{year}/{month}", s.handleOccupancy)
	})

	return r
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)

		s.tracer.LogSummary()
		s.logger.Info("HTTP server stopped",
			"rate_limited", s.limiter.Rejected(),
			"suspicious", s.detector.Suspicious())
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
