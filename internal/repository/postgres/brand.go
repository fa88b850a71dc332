package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/brandcatalog/internal/domain"
	"github.com/utafrali/brandcatalog/internal/repository"
	"github.com/utafrali/brandcatalog/pkg/database"
	apperrors "github.com/utafrali/brandcatalog/pkg/errors"
	"github.com/utafrali/brandcatalog/pkg/pagination"
)

const (
	constraintName = "brands_name_key"
	constraintSlug = "brands_slug_key"

	uniqueViolation = "23505"
)

const brandColumns = `id, name, slug, logo_url, logo_thumbnail_url, logo_key, thumbnail_key,
	description, website, featured, created_at, updated_at`

// BrandRepository implements repository.BrandRepository using PostgreSQL.
type BrandRepository struct {
	pool database.DBTX
}

var _ repository.BrandRepository = (*BrandRepository)(nil)

// NewBrandRepository creates a PostgreSQL-backed brand repository.
func NewBrandRepository(pool database.DBTX) *BrandRepository {
	return &BrandRepository{pool: pool}
}

// Create inserts a brand. A duplicate slug yields repository.ErrSlugConflict
// and a duplicate name an ALREADY_EXISTS AppError.
func (r *BrandRepository) Create(ctx context.Context, b *domain.Brand) error {
	query := `
		INSERT INTO brands (` + brandColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		b.ID,
		b.Name,
		b.Slug,
		b.LogoURL,
		b.LogoThumbnailURL,
		b.LogoKey,
		b.ThumbnailKey,
		b.Description,
		b.Website,
		b.Featured,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if cerr := conflict(err, b); cerr != nil {
			return cerr
		}
		return fmt.Errorf("insert brand: %w", err)
	}
	return nil
}

// GetByID retrieves a brand by ID.
func (r *BrandRepository) GetByID(ctx context.Context, id string) (*domain.Brand, error) {
	b, err := r.scanBrand(ctx, `SELECT `+brandColumns+` FROM brands WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("brand", id)
	}
	return b, err
}

// GetBySlug retrieves a brand by slug.
func (r *BrandRepository) GetBySlug(ctx context.Context, slug string) (*domain.Brand, error) {
	b, err := r.scanBrand(ctx, `SELECT `+brandColumns+` FROM brands WHERE slug = $1`, slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperrors.AppError{
			Code:    "NOT_FOUND",
			Message: fmt.Sprintf("brand %q not found", slug),
			Status:  http.StatusNotFound,
			Err:     apperrors.ErrNotFound,
		}
	}
	return b, err
}

// GetByName retrieves a brand by exact name.
func (r *BrandRepository) GetByName(ctx context.Context, name string) (*domain.Brand, error) {
	b, err := r.scanBrand(ctx, `SELECT `+brandColumns+` FROM brands WHERE name = $1`, name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return b, err
}

// SlugExists reports whether slug is taken.
func (r *BrandRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM brands WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check brand slug: %w", err)
	}
	return exists, nil
}

// Count returns the number of brands matching filter.
func (r *BrandRepository) Count(ctx context.Context, filter domain.ListFilter) (int, error) {
	where, args := whereClause(filter)

	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM brands `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count brands: %w", err)
	}
	return n, nil
}

// List returns a page of brands ordered by name.
func (r *BrandRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Brand, int, error) {
	where, args := whereClause(filter)
	p := pagination.New(filter.Page, filter.PerPage)

	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM brands
		%s
		ORDER BY name
		LIMIT $%d OFFSET $%d`,
		brandColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, p.PerPage, p.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	var (
		brands []domain.Brand
		total  int
	)
	for rows.Next() {
		var b domain.Brand
		if err := rows.Scan(append(fields(&b), &total)...); err != nil {
			return nil, 0, fmt.Errorf("scan brand row: %w", err)
		}
		brands = append(brands, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate brand rows: %w", err)
	}

	if brands == nil {
		brands = []domain.Brand{}
	}
	return brands, total, nil
}

// Update writes every mutable column and bumps updated_at.
func (r *BrandRepository) Update(ctx context.Context, b *domain.Brand) error {
	b.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE brands
		SET name = $1, slug = $2, logo_url = $3, logo_thumbnail_url = $4, logo_key = $5,
		    thumbnail_key = $6, description = $7, website = $8, featured = $9, updated_at = $10
		WHERE id = $11`

	ct, err := r.pool.Exec(ctx, query,
		b.Name,
		b.Slug,
		b.LogoURL,
		b.LogoThumbnailURL,
		b.LogoKey,
		b.ThumbnailKey,
		b.Description,
		b.Website,
		b.Featured,
		b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		if cerr := conflict(err, b); cerr != nil {
			return cerr
		}
		return fmt.Errorf("update brand: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("brand", b.ID)
	}
	return nil
}

// Delete removes a brand by ID.
func (r *BrandRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM brands WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete brand: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("brand", id)
	}
	return nil
}

func (r *BrandRepository) scanBrand(ctx context.Context, query string, args ...any) (*domain.Brand, error) {
	var b domain.Brand
	if err := r.pool.QueryRow(ctx, query, args...).Scan(fields(&b)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan brand: %w", err)
	}
	return &b, nil
}

func fields(b *domain.Brand) []any {
	return []any{
		&b.ID,
		&b.Name,
		&b.Slug,
		&b.LogoURL,
		&b.LogoThumbnailURL,
		&b.LogoKey,
		&b.ThumbnailKey,
		&b.Description,
		&b.Website,
		&b.Featured,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
}

func whereClause(filter domain.ListFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.Featured != nil {
		args = append(args, *filter.Featured)
		conditions = append(conditions, fmt.Sprintf("featured = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// conflict maps a unique violation to the error callers branch on, or returns
// nil for any other error.
func conflict(err error, b *domain.Brand) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case constraintSlug:
		return fmt.Errorf("%w: %s", repository.ErrSlugConflict, b.Slug)
	case constraintName:
		return apperrors.AlreadyExists("brand", "name", b.Name)
	default:
		return apperrors.Conflict("ALREADY_EXISTS", "brand conflicts with an existing record", err)
	}
}
