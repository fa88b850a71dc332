package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/utafrali/brandcatalog/internal/domain"
	"github.com/utafrali/brandcatalog/internal/repository"
	"github.com/utafrali/brandcatalog/internal/storage"
	apperrors "github.com/utafrali/brandcatalog/pkg/errors"
	"github.com/utafrali/brandcatalog/pkg/imaging"
	"github.com/utafrali/brandcatalog/pkg/slug"
	"github.com/utafrali/brandcatalog/pkg/validator"
)

const recordType = "brand"

// DetailCache caches public detail pages by slug.
type DetailCache interface {
	Get(ctx context.Context, slug string) (*domain.Detail, bool, error)
	Set(ctx context.Context, d *domain.Detail) error
	Invalidate(ctx context.Context, slugs ...string) error
}

// EventPublisher emits brand lifecycle events.
type EventPublisher interface {
	BrandCreated(ctx context.Context, b *domain.Brand) error
	BrandUpdated(ctx context.Context, b *domain.Brand) error
	BrandDeleted(ctx context.Context, b *domain.Brand) error
}

// Options tunes BrandService. Zero fields take defaults.
type Options struct {
	Slugs            *slug.Generator
	Images           *imaging.Processor
	Fetcher          LogoFetcher // nil disables logo_url in imports
	Metrics          *Metrics
	LogoMaxBytes     int64
	LogoContentTypes []string

	// CreateAttempts bounds inserts when a generated slug is taken by a
	// concurrent writer between lookup and insert.
	CreateAttempts int
	RetryDelay     time.Duration
}

func (o *Options) defaults() {
	if o.Slugs == nil {
		o.Slugs = slug.NewGenerator(slug.DefaultMaxLength, slug.DefaultMaxAttempts)
	}
	if o.Images == nil {
		o.Images = imaging.NewProcessor(imaging.DefaultOptions())
	}
	if o.LogoMaxBytes <= 0 {
		o.LogoMaxBytes = 5 << 20
	}
	if len(o.LogoContentTypes) == 0 {
		o.LogoContentTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	}
	if o.CreateAttempts <= 0 {
		o.CreateAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 50 * time.Millisecond
	}
}

// BrandService implements the business logic for brands.
type BrandService struct {
	repo   repository.BrandRepository
	store  storage.Storage
	cache  DetailCache
	events EventPublisher
	opts   Options
	logger *slog.Logger
}

// NewBrandService creates a brand service. cache and events may be nil.
func NewBrandService(
	repo repository.BrandRepository,
	store storage.Storage,
	cache DetailCache,
	events EventPublisher,
	opts Options,
	logger *slog.Logger,
) *BrandService {
	opts.defaults()
	if events == nil {
		events = noopEvents{}
	}
	return &BrandService{
		repo:   repo,
		store:  store,
		cache:  cache,
		events: events,
		opts:   opts,
		logger: logger,
	}
}

// CreateBrandInput holds the parameters for creating a brand. A nil or blank
// Slug is generated from Name.
type CreateBrandInput struct {
	Name        string
	Slug        *string
	Description string
	Website     string
	Featured    bool
}

// UpdateBrandInput holds a partial update. Renaming keeps the slug unless
// Slug is set.
type UpdateBrandInput struct {
	Name        *string
	Slug        *string
	Description *string
	Website     *string
	Featured    *bool
}

// CreateBrand validates input, assigns a unique slug and inserts the brand.
func (s *BrandService) CreateBrand(ctx context.Context, input CreateBrandInput) (*domain.Brand, error) {
	name, err := cleanName(input.Name)
	if err != nil {
		return nil, err
	}
	website, err := cleanWebsite(input.Website)
	if err != nil {
		return nil, err
	}

	var explicit string
	if input.Slug != nil && strings.TrimSpace(*input.Slug) != "" {
		if explicit, err = cleanSlug(*input.Slug); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	brand := &domain.Brand{
		ID:          uuid.New().String(),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Website:     website,
		Featured:    input.Featured,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.insert(ctx, brand, explicit); err != nil {
		return nil, err
	}

	s.publish(ctx, "brand.created", brand, s.events.BrandCreated)

	s.logger.InfoContext(ctx, "brand created",
		slog.String("brand_id", brand.ID),
		slog.String("slug", brand.Slug),
	)
	return brand, nil
}

// insert writes brand, regenerating its slug when a concurrent insert wins
// the race for it. An explicit slug is never regenerated.
func (s *BrandService) insert(ctx context.Context, brand *domain.Brand, explicit string) error {
	for attempt := 0; attempt < s.opts.CreateAttempts; attempt++ {
		if attempt > 0 {
			s.opts.Metrics.slugRetry()
			select {
			case <-time.After(s.opts.RetryDelay << (attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if explicit != "" {
			brand.Slug = explicit
		} else {
			generated, err := s.opts.Slugs.Unique(ctx, brand.Name, recordType, s.repo.SlugExists)
			if err != nil {
				return slugError(brand.Name, err)
			}
			brand.Slug = generated
		}

		err := s.repo.Create(ctx, brand)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrSlugConflict) {
			return fmt.Errorf("create brand: %w", err)
		}
		if explicit != "" {
			return slugTaken(explicit)
		}
		s.logger.WarnContext(ctx, "generated slug taken concurrently, regenerating",
			slog.String("slug", brand.Slug),
			slog.Int("attempt", attempt+1),
		)
	}
	return apperrors.Conflict("SLUG_CONFLICT",
		fmt.Sprintf("could not reserve a unique slug for %q, please retry", brand.Name), repository.ErrSlugConflict)
}

// GetBrand retrieves a brand by ID.
func (s *BrandService) GetBrand(ctx context.Context, id string) (*domain.Brand, error) {
	brand, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get brand by id: %w", err)
	}
	return brand, nil
}

// GetBrandDetail returns the public detail page for slug, served from cache
// when possible. Cache failures degrade to the store.
func (s *BrandService) GetBrandDetail(ctx context.Context, slugValue string) (*domain.Detail, error) {
	if s.cache != nil {
		detail, ok, err := s.cache.Get(ctx, slugValue)
		if err != nil {
			s.logger.WarnContext(ctx, "brand cache read failed",
				slog.String("slug", slugValue),
				slog.String("error", err.Error()),
			)
		} else if ok {
			return detail, nil
		}
	}

	brand, err := s.repo.GetBySlug(ctx, slugValue)
	if err != nil {
		return nil, fmt.Errorf("get brand by slug: %w", err)
	}
	detail := domain.NewDetail(brand)

	if s.cache != nil {
		if err := s.cache.Set(ctx, detail); err != nil {
			s.logger.WarnContext(ctx, "brand cache write failed",
				slog.String("slug", slugValue),
				slog.String("error", err.Error()),
			)
		}
	}
	return detail, nil
}

// ListFeatured returns featured brands ordered by name.
func (s *BrandService) ListFeatured(ctx context.Context, page, perPage int) ([]domain.Brand, int, error) {
	featured := true
	return s.list(ctx, domain.ListFilter{Featured: &featured, Page: page, PerPage: perPage})
}

// ListBrands returns brands for the admin list.
func (s *BrandService) ListBrands(ctx context.Context, filter domain.ListFilter) ([]domain.Brand, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.list(ctx, filter)
}

func (s *BrandService) list(ctx context.Context, filter domain.ListFilter) ([]domain.Brand, int, error) {
	brands, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list brands: %w", err)
	}
	// A page past the end has no rows to carry the window count.
	if len(brands) == 0 && filter.Page > 1 {
		if total, err = s.repo.Count(ctx, filter); err != nil {
			return nil, 0, fmt.Errorf("count brands: %w", err)
		}
	}
	return brands, total, nil
}

// UpdateBrand applies a partial update.
func (s *BrandService) UpdateBrand(ctx context.Context, id string, input UpdateBrandInput) (*domain.Brand, error) {
	brand, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get brand for update: %w", err)
	}
	oldSlug := brand.Slug

	if input.Name != nil {
		if brand.Name, err = cleanName(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.Slug != nil {
		if brand.Slug, err = cleanSlug(*input.Slug); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		brand.Description = strings.TrimSpace(*input.Description)
	}
	if input.Website != nil {
		if brand.Website, err = cleanWebsite(*input.Website); err != nil {
			return nil, err
		}
	}
	if input.Featured != nil {
		brand.Featured = *input.Featured
	}

	if err := s.repo.Update(ctx, brand); err != nil {
		if errors.Is(err, repository.ErrSlugConflict) {
			return nil, slugTaken(brand.Slug)
		}
		return nil, fmt.Errorf("update brand: %w", err)
	}

	s.invalidate(ctx, oldSlug, brand.Slug)
	s.publish(ctx, "brand.updated", brand, s.events.BrandUpdated)

	s.logger.InfoContext(ctx, "brand updated",
		slog.String("brand_id", brand.ID),
		slog.String("slug", brand.Slug),
	)
	return brand, nil
}

// DeleteBrand removes a brand and, best effort, its stored logo files.
func (s *BrandService) DeleteBrand(ctx context.Context, id string) error {
	brand, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get brand for delete: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete brand: %w", err)
	}

	s.removeAssets(ctx, brand.LogoKey, brand.ThumbnailKey)
	s.invalidate(ctx, brand.Slug)
	s.publish(ctx, "brand.deleted", brand, s.events.BrandDeleted)

	s.logger.InfoContext(ctx, "brand deleted",
		slog.String("brand_id", id),
		slog.String("slug", brand.Slug),
	)
	return nil
}

func (s *BrandService) invalidate(ctx context.Context, slugs ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, slugs...); err != nil {
		s.logger.ErrorContext(ctx, "failed to invalidate brand cache",
			slog.Any("slugs", slugs),
			slog.String("error", err.Error()),
		)
	}
}

// publish logs and drops event failures; the write has already committed.
func (s *BrandService) publish(ctx context.Context, name string, b *domain.Brand, fn func(context.Context, *domain.Brand) error) {
	if err := fn(ctx, b); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish "+name+" event",
			slog.String("brand_id", b.ID),
			slog.String("error", err.Error()),
		)
	}
}

type noopEvents struct{}

func (noopEvents) BrandCreated(context.Context, *domain.Brand) error { return nil }
func (noopEvents) BrandUpdated(context.Context, *domain.Brand) error { return nil }
func (noopEvents) BrandDeleted(context.Context, *domain.Brand) error { return nil }

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.InvalidInput("brand name is required")
	}
	if utf8.RuneCountInString(name) > domain.MaxNameLength {
		return "", apperrors.InvalidInput(fmt.Sprintf("brand name must be at most %d characters", domain.MaxNameLength))
	}
	if err := validator.ValidateBrandName(name); err != nil {
		return "", apperrors.InvalidInput(err.Error())
	}
	return name, nil
}

func cleanWebsite(website string) (string, error) {
	website = strings.TrimSpace(website)
	if website == "" {
		return "", nil
	}
	if utf8.RuneCountInString(website) > domain.MaxWebsiteLength {
		return "", apperrors.InvalidInput(fmt.Sprintf("website must be at most %d characters", domain.MaxWebsiteLength))
	}
	if err := validator.ValidateWebsiteURL(website); err != nil {
		return "", apperrors.InvalidInput(err.Error())
	}
	return website, nil
}

func cleanSlug(raw string) (string, error) {
	s := slug.Normalize(raw, domain.MaxSlugLength)
	if s == "" {
		return "", apperrors.InvalidInput("slug must contain at least one letter or digit")
	}
	return s, nil
}

func slugTaken(s string) error {
	return apperrors.AlreadyExists("brand", "slug", s)
}

func slugError(name string, err error) error {
	switch {
	case errors.Is(err, slug.ErrEmpty):
		return apperrors.InvalidInput("brand name must contain at least one letter or digit")
	case errors.Is(err, slug.ErrExhausted):
		return apperrors.Conflict("SLUG_EXHAUSTED",
			fmt.Sprintf("no unique slug available for %q; supply a slug explicitly", name), err)
	default:
		return fmt.Errorf("generate slug: %w", err)
	}
}
