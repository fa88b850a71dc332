package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/brandcatalog/internal/service"
	"github.com/utafrali/brandcatalog/internal/storage"
	"github.com/utafrali/brandcatalog/pkg/health"
	"github.com/utafrali/brandcatalog/pkg/middleware"
)

// AdminRole is the JWT role allowed to manage brands.
const AdminRole = "admin"

// RouterConfig carries the cross-cutting pieces the router wires in.
type RouterConfig struct {
	ServiceName    string
	Tokens         middleware.TokenValidator
	Metrics        *middleware.HTTPMetrics
	Gatherer       prometheus.Gatherer
	UploadLimiter  *middleware.RateLimiter // nil disables logo upload throttling
	PublicMaxAge   int
	LogoMaxBytes   int64
	ImportMaxBytes int64
}

// NewRouter creates a chi router with all brand catalog routes registered.
func NewRouter(
	brandService *service.BrandService,
	store storage.Storage,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Stored logos
	mediaHandler := NewMediaHandler(store, logger)
	r.Get("/media/*", mediaHandler.Serve)

	// Public brand pages
	brandHandler := NewBrandHandler(brandService, logger)

	r.Route("/api/v1/brands", func(r chi.Router) {
		r.Use(middleware.CacheControl(cfg.PublicMaxAge))

		r.Get("/", brandHandler.ListFeatured)
		r.Get("/{slug}", brandHandler.GetBrand)
	})

	// Brand management
	adminHandler := NewAdminHandler(brandService, cfg.LogoMaxBytes, cfg.ImportMaxBytes, logger)

	r.Route("/api/v1/admin/brands", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.Auth(cfg.Tokens))
		r.Use(middleware.RequireRole(AdminRole))
		r.Use(ContentTypeJSON)

		r.Get("/", adminHandler.ListBrands)
		r.Post("/", adminHandler.CreateBrand)
		r.Post("/import", adminHandler.ImportBrands)
		r.Get("/{id}", adminHandler.GetBrand)
		r.Put("/{id}", adminHandler.UpdateBrand)
		r.Delete("/{id}", adminHandler.DeleteBrand)

		r.Group(func(r chi.Router) {
			if cfg.UploadLimiter != nil {
				r.Use(cfg.UploadLimiter.Middleware(logger))
			}
			r.Post("/{id}/logo", adminHandler.UploadLogo)
		})
	})

	return r
}
