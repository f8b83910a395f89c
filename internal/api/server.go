package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/maturity-engine/internal/assessment"
	"github.com/terra-clan/maturity-engine/internal/config"
	"github.com/terra-clan/maturity-engine/internal/events"
	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/ingest"
	"github.com/terra-clan/maturity-engine/internal/services"
	"github.com/terra-clan/maturity-engine/internal/widget"
)

// Dependencies are the services the API is built on
type Dependencies struct {
	Assessments   assessment.Manager
	Catalog       *framework.Catalog
	Organizations OrganizationStore
	Clients       ClientStore
	Ingest        *ingest.Manager
	Widget        *widget.Service
	Hub           *events.Hub
	Health        *services.Registry
}

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	assessments    assessment.Manager
	catalog        *framework.Catalog
	organizations  OrganizationStore
	ingest         *ingest.Manager
	widget         *widget.Service
	hub            *events.Hub
	health         *services.Registry
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	s := &Server{
		config:         cfg,
		assessments:    deps.Assessments,
		catalog:        deps.Catalog,
		organizations:  deps.Organizations,
		ingest:         deps.Ingest,
		widget:         deps.Widget,
		hub:            deps.Hub,
		health:         deps.Health,
		authMiddleware: NewAuthMiddleware(deps.Clients),
	}
	if s.health == nil {
		s.health = services.NewRegistry()
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	auth := s.authMiddleware

	// API v1 routes (protected by authentication)
	r.Route("/api/v1", func(r chi.Router) {
		// Apply authentication middleware to all /api/v1/* routes
		r.Use(auth.Authenticate)

		// Live event feed; long-lived, so outside the request timeout
		r.With(auth.RequirePermission("events:read")).Get("/events/ws", s.handleEventsWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// Frameworks
			r.Route("/frameworks", func(r chi.Router) {
				r.With(auth.RequirePermission("frameworks:read")).Get("/", s.handleListFrameworks)
				r.With(auth.RequirePermission("frameworks:write")).Post("/", s.handleCreateFramework)
				r.With(auth.RequirePermission("frameworks:read")).Post("/validate", s.handleValidateFramework)
				r.With(auth.RequirePermission("frameworks:read")).Get("/template", s.handleFrameworkTemplate)

				r.Route("/{id}", func(r chi.Router) {
					r.With(auth.RequirePermission("frameworks:read")).Get("/", s.handleGetFramework)
					r.With(auth.RequirePermission("frameworks:read")).Get("/structure", s.handleFrameworkStructure)
					r.With(auth.RequirePermission("frameworks:write")).Delete("/", s.handleDeleteFramework)
				})
			})

			// Assessments
			r.Route("/assessments", func(r chi.Router) {
				r.With(auth.RequirePermission("assessments:read")).Get("/", s.handleListAssessments)
				r.With(auth.RequirePermission("assessments:write")).Post("/", s.handleCreateAssessment)

				r.Route("/{id}", func(r chi.Router) {
					r.With(auth.RequirePermission("assessments:read")).Get("/", s.handleGetAssessment)
					r.With(auth.RequirePermission("assessments:write")).Put("/", s.handleUpdateAssessment)
					r.With(auth.RequirePermission("assessments:write")).Delete("/", s.handleDeleteAssessment)
					r.With(auth.RequirePermission("assessments:read")).Get("/responses", s.handleGetResponses)
					r.With(auth.RequirePermission("assessments:write")).Put("/responses", s.handleSaveResponses)
					r.With(auth.RequirePermission("assessments:read")).Get("/progress", s.handleProgress)
					r.With(auth.RequirePermission("assessments:write")).Post("/submit", s.handleSubmit)
					r.With(auth.RequirePermission("assessments:read")).Get("/report", s.handleReport)
				})
			})

			// Organizations
			r.Route("/organizations", func(r chi.Router) {
				r.With(auth.RequirePermission("organizations:read")).Get("/", s.handleListOrganizations)
				r.With(auth.RequirePermission("organizations:write"), auth.RequireGlobal).Post("/", s.handleCreateOrganization)

				r.Route("/{id}", func(r chi.Router) {
					r.With(auth.RequirePermission("organizations:read")).Get("/", s.handleGetOrganization)
					r.With(auth.RequirePermission("organizations:write")).Put("/", s.handleUpdateOrganization)
					r.With(auth.RequirePermission("organizations:write"), auth.RequireGlobal).Delete("/", s.handleDeleteOrganization)
				})
			})

			// Analytics
			r.With(auth.RequirePermission("analytics:read")).Get("/analytics/summary", s.handleAnalyticsSummary)

			// Embedded widget mode, one scope per host product
			r.Route("/products/{productID}", func(r chi.Router) {
				r.Route("/framework", func(r chi.Router) {
					r.With(auth.RequirePermission("widget:read")).Get("/", s.handleFrameworkStatus)
					r.With(auth.RequirePermission("widget:read")).Get("/active", s.handleActiveFramework)
					r.With(auth.RequirePermission("widget:admin")).Post("/upload", s.handleUploadFramework)
					r.With(auth.RequirePermission("widget:admin")).Post("/confirm", s.handleConfirmFramework)
					r.With(auth.RequirePermission("widget:admin")).Post("/cancel", s.handleCancelFramework)
					r.With(auth.RequirePermission("widget:admin")).Delete("/", s.handleClearFramework)
				})

				r.Route("/assessments", func(r chi.Router) {
					r.With(auth.RequirePermission("widget:read")).Get("/", s.handleWidgetHistory)
					r.With(auth.RequirePermission("widget:write")).Post("/", s.handleWidgetSubmit)
					r.With(auth.RequirePermission("widget:read")).Get("/{entryID}", s.handleWidgetEntry)
				})
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
