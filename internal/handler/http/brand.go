package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/brandcatalog/internal/service"
	apperrors "github.com/utafrali/brandcatalog/pkg/errors"
	"github.com/utafrali/brandcatalog/pkg/httputil"
	"github.com/utafrali/brandcatalog/pkg/pagination"
	"github.com/utafrali/brandcatalog/pkg/slug"
)

// BrandHandler serves the public brand pages.
type BrandHandler struct {
	service *service.BrandService
	logger  *slog.Logger
}

// NewBrandHandler creates a new brand HTTP handler.
func NewBrandHandler(svc *service.BrandService, logger *slog.Logger) *BrandHandler {
	return &BrandHandler{
		service: svc,
		logger:  logger,
	}
}

// ListFeatured handles GET /api/v1/brands
func (h *BrandHandler) ListFeatured(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)

	brands, total, err := h.service.ListFeatured(r.Context(), p.Page, p.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(brands, total, p))
}

// GetBrand handles GET /api/v1/brands/{slug}
func (h *BrandHandler) GetBrand(w http.ResponseWriter, r *http.Request) {
	s := chi.URLParam(r, "slug")
	// Only normalized slugs are ever stored.
	if !slug.Valid(s) {
		httputil.WriteError(w, r, apperrors.NotFound("brand", s), h.logger)
		return
	}

	detail, err := h.service.GetBrandDetail(r.Context(), s)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, detail)
}
