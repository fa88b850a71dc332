package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/brandcatalog/internal/domain"
	"github.com/utafrali/brandcatalog/internal/storage"
	apperrors "github.com/utafrali/brandcatalog/pkg/errors"
	"github.com/utafrali/brandcatalog/pkg/imaging"
)

const logoPrefix = "brands/"

// UploadLogo validates, resizes and stores file as the brand's logo and
// thumbnail, replacing any previous logo.
func (s *BrandService) UploadLogo(ctx context.Context, id string, file *imaging.File) (*domain.Brand, error) {
	brand, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get brand for logo upload: %w", err)
	}
	if err := s.attachLogo(ctx, brand, file); err != nil {
		return nil, err
	}
	return brand, nil
}

func (s *BrandService) attachLogo(ctx context.Context, brand *domain.Brand, file *imaging.File) (err error) {
	start := time.Now()
	defer func() { s.opts.Metrics.logo(start, err) }()

	if err := s.checkLogo(file); err != nil {
		return err
	}

	logo, thumb, err := s.renderLogo(brand, file)
	if err != nil {
		return err
	}

	logoRes, err := s.upload(ctx, logo)
	if err != nil {
		return err
	}
	thumbRes, err := s.upload(ctx, thumb)
	if err != nil {
		s.removeAssets(ctx, &logoRes.Key)
		return err
	}

	prev := *brand
	brand.LogoURL, brand.LogoKey = &logoRes.URL, &logoRes.Key
	brand.LogoThumbnailURL, brand.ThumbnailKey = &thumbRes.URL, &thumbRes.Key

	if err := s.repo.Update(ctx, brand); err != nil {
		*brand = prev
		s.removeAssets(ctx, &logoRes.Key, &thumbRes.Key)
		return fmt.Errorf("save brand logo: %w", err)
	}

	s.removeAssets(ctx, prev.LogoKey, prev.ThumbnailKey)
	s.invalidate(ctx, brand.Slug)
	s.publish(ctx, "brand.updated", brand, s.events.BrandUpdated)

	s.logger.InfoContext(ctx, "brand logo uploaded",
		slog.String("brand_id", brand.ID),
		slog.String("logo_key", logoRes.Key),
		slog.Int64("original_bytes", file.Size()),
		slog.Int64("logo_bytes", logo.Size()),
	)
	return nil
}

// checkLogo applies the size and content type limits. A missing or generic
// content type is replaced by the sniffed one.
func (s *BrandService) checkLogo(file *imaging.File) error {
	if file == nil || file.Size() == 0 {
		return apperrors.InvalidInput("logo file is empty")
	}
	if file.Size() > s.opts.LogoMaxBytes {
		return apperrors.InvalidInput(fmt.Sprintf("logo must be at most %d bytes, got %d", s.opts.LogoMaxBytes, file.Size()))
	}

	ct, _, err := mime.ParseMediaType(file.ContentType)
	if err != nil || ct == "application/octet-stream" {
		ct, _, _ = mime.ParseMediaType(http.DetectContentType(file.Data))
	}
	for _, allowed := range s.opts.LogoContentTypes {
		if strings.EqualFold(ct, allowed) {
			file.ContentType = ct
			return nil
		}
	}
	return apperrors.InvalidInput(fmt.Sprintf("unsupported logo type %q, allowed: %s", ct, strings.Join(s.opts.LogoContentTypes, ", ")))
}

// renderLogo produces the optimized logo and its thumbnail. Files are named
// after the slug plus a random suffix so a replacement never overwrites the
// object a cached page still points at.
func (s *BrandService) renderLogo(brand *domain.Brand, file *imaging.File) (*imaging.File, *imaging.File, error) {
	if err := s.opts.Images.Validate(file); err != nil {
		return nil, nil, imageError(err)
	}

	named := &imaging.File{
		Name:        fmt.Sprintf("%s-%s%s", brand.Slug, uuid.NewString()[:8], path.Ext(file.Name)),
		ContentType: file.ContentType,
		Data:        file.Data,
	}

	logo, err := s.opts.Images.Optimize(named)
	if err != nil {
		return nil, nil, imageError(err)
	}
	thumb, err := s.opts.Images.Thumbnail(named)
	if err != nil {
		return nil, nil, imageError(err)
	}
	return logo, thumb, nil
}

func (s *BrandService) upload(ctx context.Context, f *imaging.File) (*storage.UploadResult, error) {
	res, err := s.store.Upload(ctx, &storage.UploadInput{
		Key:         logoPrefix + f.Name,
		ContentType: f.ContentType,
		Size:        f.Size(),
		Data:        bytes.NewReader(f.Data),
	})
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", f.Name, err)
	}
	return res, nil
}

// removeAssets deletes stored objects best effort.
func (s *BrandService) removeAssets(ctx context.Context, keys ...*string) {
	for _, k := range keys {
		if k == nil || *k == "" {
			continue
		}
		if err := s.store.Delete(ctx, *k); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to delete stored logo",
				slog.String("key", *k),
				slog.String("error", err.Error()),
			)
		}
	}
}

func imageError(err error) error {
	var dimErr *imaging.DimensionError
	switch {
	case errors.As(err, &dimErr):
		return apperrors.InvalidInput(dimErr.Error())
	case errors.Is(err, imaging.ErrDecode):
		return apperrors.Unprocessable("INVALID_IMAGE", "uploaded file is not a readable image", err)
	default:
		return fmt.Errorf("process logo: %w", err)
	}
}
