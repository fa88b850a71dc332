package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/brandcatalog/internal/domain"
	"github.com/utafrali/brandcatalog/internal/service"
	apperrors "github.com/utafrali/brandcatalog/pkg/errors"
	"github.com/utafrali/brandcatalog/pkg/httputil"
	"github.com/utafrali/brandcatalog/pkg/imaging"
	"github.com/utafrali/brandcatalog/pkg/pagination"
	"github.com/utafrali/brandcatalog/pkg/validator"
)

const (
	maxJSONBody = 1 << 20
	// formOverhead covers multipart boundaries and headers around the file.
	formOverhead = 1 << 20
)

// AdminHandler serves the authenticated brand management endpoints.
type AdminHandler struct {
	service        *service.BrandService
	logoMaxBytes   int64
	importMaxBytes int64
	logger         *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(svc *service.BrandService, logoMaxBytes, importMaxBytes int64, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service:        svc,
		logoMaxBytes:   logoMaxBytes,
		importMaxBytes: importMaxBytes,
		logger:         logger,
	}
}

// --- Request DTOs ---

// CreateBrandRequest is the JSON request body for creating a brand.
type CreateBrandRequest struct {
	Name        string  `json:"name" validate:"required,max=100,brandname"`
	Slug        *string `json:"slug" validate:"omitempty,max=100"`
	Description string  `json:"description" validate:"max=5000"`
	Website     string  `json:"website" validate:"omitempty,max=255,website"`
	Featured    bool    `json:"featured"`
}

// UpdateBrandRequest is the JSON request body for updating a brand. Omitted
// fields are left unchanged.
type UpdateBrandRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100,brandname"`
	Slug        *string `json:"slug" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Website     *string `json:"website" validate:"omitempty,max=255,website"`
	Featured    *bool   `json:"featured"`
}

// --- Handlers ---

// ListBrands handles GET /api/v1/admin/brands
func (h *AdminHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)
	filter := domain.ListFilter{
		Search:  r.URL.Query().Get("search"),
		Page:    p.Page,
		PerPage: p.PerPage,
	}
	if v := r.URL.Query().Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "featured must be true or false"},
			})
			return
		}
		filter.Featured = &featured
	}

	brands, total, err := h.service.ListBrands(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(brands, total, p))
}

// CreateBrand handles POST /api/v1/admin/brands
func (h *AdminHandler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var req CreateBrandRequest
	if err := httputil.DecodeJSON(w, r, &req, maxJSONBody); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	brand, err := h.service.CreateBrand(r.Context(), service.CreateBrandInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Website:     req.Website,
		Featured:    req.Featured,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, brand)
}

// GetBrand handles GET /api/v1/admin/brands/{id}
func (h *AdminHandler) GetBrand(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	brand, err := h.service.GetBrand(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, brand)
}

// UpdateBrand handles PUT /api/v1/admin/brands/{id}
func (h *AdminHandler) UpdateBrand(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateBrandRequest
	if err := httputil.DecodeJSON(w, r, &req, maxJSONBody); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	brand, err := h.service.UpdateBrand(r.Context(), id.String(), service.UpdateBrandInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Website:     req.Website,
		Featured:    req.Featured,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, brand)
}

// DeleteBrand handles DELETE /api/v1/admin/brands/{id}
func (h *AdminHandler) DeleteBrand(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteBrand(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadLogo handles POST /api/v1/admin/brands/{id}/logo (multipart field "logo").
func (h *AdminHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	file, header, err := h.formFile(w, r, "logo", h.logoMaxBytes)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	defer file.Close()

	// One extra byte lets the service see an oversized part.
	data, err := io.ReadAll(io.LimitReader(file, h.logoMaxBytes+1))
	if err != nil {
		httputil.WriteError(w, r, fmt.Errorf("read logo upload: %w", err), h.logger)
		return
	}

	brand, err := h.service.UploadLogo(r.Context(), id.String(), &imaging.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, brand)
}

// ImportBrands handles POST /api/v1/admin/brands/import (multipart field "csv_file").
func (h *AdminHandler) ImportBrands(w http.ResponseWriter, r *http.Request) {
	file, _, err := h.formFile(w, r, "csv_file", h.importMaxBytes)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	defer file.Close()

	result, err := h.service.ImportCSV(r.Context(), file)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// formFile parses a multipart body capped at limit plus overhead and returns
// the named part.
func (h *AdminHandler) formFile(w http.ResponseWriter, r *http.Request, field string, limit int64) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, apperrors.InvalidInput(fmt.Sprintf("upload must be at most %d bytes", limit))
		}
		return nil, nil, apperrors.InvalidInput("failed to parse multipart form: " + err.Error())
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, apperrors.InvalidInput(field + " file is required")
	}
	return file, header, nil
}
