package repository

import (
	"context"
	"errors"

	"github.com/utafrali/brandcatalog/internal/domain"
)

// ErrSlugConflict is returned by Create and Update when another row already
// holds the slug. Name conflicts are reported as apperrors.ErrAlreadyExists.
var ErrSlugConflict = errors.New("brand slug already taken")

// BrandRepository defines brand persistence.
type BrandRepository interface {
	// Create inserts b. Uniqueness is enforced by the store, not checked first.
	Create(ctx context.Context, b *domain.Brand) error

	GetByID(ctx context.Context, id string) (*domain.Brand, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Brand, error)
	GetByName(ctx context.Context, name string) (*domain.Brand, error)

	// SlugExists reports whether any brand holds slug.
	SlugExists(ctx context.Context, slug string) (bool, error)

	// Count returns the number of brands matching filter, ignoring paging.
	Count(ctx context.Context, filter domain.ListFilter) (int, error)

	// List returns one page of brands ordered by name, plus the total match count.
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Brand, int, error)

	Update(ctx context.Context, b *domain.Brand) error
	Delete(ctx context.Context, id string) error
}
