package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"net/url"
	"path"
	"strings"

	"github.com/utafrali/brandcatalog/internal/domain"
	apperrors "github.com/utafrali/brandcatalog/pkg/errors"
	"github.com/utafrali/brandcatalog/pkg/httpclient"
	"github.com/utafrali/brandcatalog/pkg/imaging"
)

// LogoFetcher downloads remote logos for CSV imports.
type LogoFetcher interface {
	Fetch(ctx context.Context, url string, maxBytes int64) (*httpclient.Fetched, error)
}

// Recognised CSV columns. Header matching ignores case and surrounding space.
const (
	colName        = "name"
	colDescription = "description"
	colWebsite     = "website"
	colFeatured    = "featured"
	colLogoURL     = "logo_url"
)

type csvRow struct {
	cols   map[string]int
	record []string
}

func (r csvRow) get(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

// ImportCSV creates brands from a CSV file with a header row. Rows naming an
// existing brand are skipped. Invalid rows are reported in the result and do
// not stop the import; only an unreadable header or a cancelled context does.
func (s *BrandService) ImportCSV(ctx context.Context, r io.Reader) (*domain.ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.InvalidInput("CSV file is empty")
		}
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid CSV header: %v", err))
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	if _, ok := cols[colName]; !ok {
		return nil, apperrors.InvalidInput("CSV header must include a name column")
	}

	result := &domain.ImportResult{Errors: []domain.ImportRowError{}}
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return result, fmt.Errorf("read CSV: %w", err)
			}
			result.Errors = append(result.Errors, domain.ImportRowError{Row: line, Message: "malformed CSV row: " + parseErr.Err.Error()})
			s.opts.Metrics.importRow("error")
			continue
		}

		outcome := s.importRow(ctx, result, line, csvRow{cols: cols, record: record})
		s.opts.Metrics.importRow(outcome)
	}

	s.logger.InfoContext(ctx, "brand CSV import finished",
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *BrandService) importRow(ctx context.Context, result *domain.ImportResult, line int, row csvRow) string {
	name := row.get(colName)
	fail := func(msg string) string {
		result.Errors = append(result.Errors, domain.ImportRowError{Row: line, Name: name, Message: msg})
		return "error"
	}
	if name == "" {
		return fail("name is required")
	}

	if _, err := s.repo.GetByName(ctx, name); err == nil {
		result.Skipped++
		return "skipped"
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		s.logger.ErrorContext(ctx, "brand lookup failed during import",
			slog.Int("row", line),
			slog.String("error", err.Error()),
		)
		return fail("could not check for an existing brand")
	}

	logoURL := row.get(colLogoURL)
	if logoURL != "" {
		if err := checkRemoteURL(logoURL); err != nil {
			return fail(err.Error())
		}
	}

	brand, err := s.CreateBrand(ctx, CreateBrandInput{
		Name:        name,
		Description: row.get(colDescription),
		Website:     row.get(colWebsite),
		Featured:    strings.EqualFold(row.get(colFeatured), "true"),
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			result.Skipped++
			return "skipped"
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Status < 500 {
			return fail(appErr.Message)
		}
		s.logger.ErrorContext(ctx, "brand create failed during import",
			slog.Int("row", line),
			slog.String("error", err.Error()),
		)
		return fail("could not create brand")
	}
	result.Created++

	if logoURL != "" && s.opts.Fetcher != nil {
		if err := s.importLogo(ctx, brand, logoURL); err != nil {
			fail("brand created, logo not imported: " + err.Error())
		}
	}
	return "created"
}

func (s *BrandService) importLogo(ctx context.Context, brand *domain.Brand, rawURL string) error {
	fetched, err := s.opts.Fetcher.Fetch(ctx, rawURL, s.opts.LogoMaxBytes)
	if err != nil {
		s.logger.WarnContext(ctx, "logo fetch failed",
			slog.String("brand_id", brand.ID),
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		var statusErr *httpclient.StatusError
		switch {
		case errors.As(err, &statusErr):
			return fmt.Errorf("download returned status %d", statusErr.Code)
		case errors.Is(err, httpclient.ErrTooLarge):
			return fmt.Errorf("logo exceeds %d bytes", s.opts.LogoMaxBytes)
		case errors.Is(err, httpclient.ErrBlockedAddress):
			return errNotPublic
		case errors.Is(err, httpclient.ErrCircuitOpen):
			return errors.New("logo downloads temporarily disabled after repeated failures")
		default:
			return errors.New("download failed")
		}
	}

	u, _ := url.Parse(rawURL)
	file := &imaging.File{Name: path.Base(u.Path), ContentType: fetched.ContentType, Data: fetched.Data}
	if err := s.attachLogo(ctx, brand, file); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Status < 500 {
			return errors.New(appErr.Message)
		}
		return errors.New("could not store logo")
	}
	return nil
}

var errNotPublic = errors.New("logo_url must point to a public host")

// checkRemoteURL rejects anything but absolute http(s) URLs, and hosts that
// are visibly internal. Names resolving to internal addresses are refused
// later, when the fetcher dials.
func checkRemoteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("logo_url must be an absolute http(s) URL")
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return errNotPublic
	}
	if addr, err := netip.ParseAddr(host); err == nil && !httpclient.IsPublic(addr) {
		return errNotPublic
	}
	return nil
}
