package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/brandcatalog/internal/domain"
	apperrors "github.com/utafrali/brandcatalog/pkg/errors"
	"github.com/utafrali/brandcatalog/pkg/httpclient"
)

func TestImportCSV_Mixed(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	f := newFixture(t, Options{Metrics: metrics})
	ctx := context.Background()

	csvData := "\ufeffName,Description,Website,Featured\n" +
		"Acme,Tools,acme.example,TRUE\n" +
		"Nike,Sportswear,nike.com,false\n" +
		",missing name,,\n" +
		"Bad!Name,,,\n" +
		"Globex,,not a url,\n"

	f.repo.On("GetByName", ctx, "Acme").Return(nil, apperrors.ErrNotFound).Once()
	f.repo.On("GetByName", ctx, "Nike").Return(&domain.Brand{Name: "Nike"}, nil).Once()
	f.repo.On("GetByName", ctx, "Bad!Name").Return(nil, apperrors.ErrNotFound).Once()
	f.repo.On("GetByName", ctx, "Globex").Return(nil, apperrors.ErrNotFound).Once()
	f.repo.On("SlugExists", ctx, "acme").Return(false, nil).Once()
	f.repo.On("Create", ctx, mock.MatchedBy(func(b *domain.Brand) bool {
		return b.Name == "Acme" && b.Featured && b.Description == "Tools" && b.Website == "acme.example"
	})).Return(nil).Once()

	result, err := f.svc.ImportCSV(ctx, strings.NewReader(csvData))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 3)

	assert.Equal(t, domain.ImportRowError{Row: 4, Name: "", Message: "name is required"}, result.Errors[0])
	assert.Equal(t, 5, result.Errors[1].Row)
	assert.Equal(t, "Bad!Name", result.Errors[1].Name)
	assert.Contains(t, result.Errors[1].Message, "Brand name can only contain")
	assert.Equal(t, 6, result.Errors[2].Row)
	assert.Contains(t, result.Errors[2].Message, "valid website URL")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.importRows.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.importRows.WithLabelValues("skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.importRows.WithLabelValues("error")))
}

func TestImportCSV_CreateRaceCountsAsSkipped(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.repo.On("GetByName", ctx, "Acme").Return(nil, apperrors.ErrNotFound).Once()
	f.repo.On("SlugExists", ctx, "acme").Return(false, nil).Once()
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Brand")).
		Return(apperrors.AlreadyExists("brand", "name", "Acme")).Once()

	result, err := f.svc.ImportCSV(ctx, strings.NewReader("name\nAcme\n"))

	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)
}

func TestImportCSV_LookupFailureIsRowError(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.repo.On("GetByName", ctx, "Acme").Return(nil, errors.New("db down")).Once()

	result, err := f.svc.ImportCSV(ctx, strings.NewReader("name\nAcme\n"))

	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "could not check for an existing brand", result.Errors[0].Message)
}

func TestImportCSV_MalformedRow(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.repo.On("GetByName", ctx, "Acme").Return(&domain.Brand{Name: "Acme"}, nil).Once()

	result, err := f.svc.ImportCSV(ctx, strings.NewReader("name,description\nBro\"ken,x\nAcme,ok\n"))

	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "malformed CSV row")
}

func TestImportCSV_HeaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"empty file", "", "CSV file is empty"},
		{"no name column", "title,website\nAcme,acme.com\n", "name column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})

			result, err := f.svc.ImportCSV(context.Background(), strings.NewReader(tt.input))

			assert.Nil(t, result)
			ae := appErr(t, err)
			assert.Equal(t, "INVALID_INPUT", ae.Code)
			assert.Contains(t, ae.Message, tt.message)
		})
	}
}

func TestImportCSV_Cancelled(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.svc.ImportCSV(ctx, strings.NewReader("name\nAcme\n"))

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Zero(t, result.Created)
}

func TestImportCSV_LogoURL(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]*httpclient.Fetched{}}
	f := newFixture(t, Options{Fetcher: fetcher})
	ctx := context.Background()
	fetcher.files["https://cdn.example/acme.png"] = &httpclient.Fetched{Data: pngBytes(t, 300, 150), ContentType: "image/png"}

	f.repo.On("GetByName", ctx, "Acme").Return(nil, apperrors.ErrNotFound).Once()
	f.repo.On("GetByName", ctx, "Globex").Return(nil, apperrors.ErrNotFound).Once()
	f.repo.On("GetByName", ctx, "Initech").Return(nil, apperrors.ErrNotFound).Once()
	f.repo.On("SlugExists", ctx, "acme").Return(false, nil).Once()
	f.repo.On("SlugExists", ctx, "globex").Return(false, nil).Once()
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Brand")).Return(nil).Twice()
	f.repo.On("Update", ctx, mock.MatchedBy(func(b *domain.Brand) bool {
		return b.Slug == "acme" && b.LogoKey != nil
	})).Return(nil).Once()

	input := "name,logo_url\n" +
		"Acme,https://cdn.example/acme.png\n" +
		"Globex,https://cdn.example/missing.png\n" +
		"Initech,ftp://cdn.example/initech.png\n"

	result, err := f.svc.ImportCSV(ctx, strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, domain.ImportRowError{
		Row: 3, Name: "Globex", Message: "brand created, logo not imported: download returned status 404",
	}, result.Errors[0])
	assert.Equal(t, 4, result.Errors[1].Row)
	assert.Equal(t, "logo_url must be an absolute http(s) URL", result.Errors[1].Message)

	assert.Equal(t, []string{"https://cdn.example/acme.png", "https://cdn.example/missing.png"}, fetcher.urls)
	assert.Len(t, f.store.Keys(), 2)
}

func TestImportCSV_LogoURLInternalHost(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]*httpclient.Fetched{}}
	f := newFixture(t, Options{Fetcher: fetcher})
	ctx := context.Background()

	names := []string{"Acme", "Globex", "Initech", "Umbrella", "Hooli"}
	for _, n := range names {
		f.repo.On("GetByName", ctx, n).Return(nil, apperrors.ErrNotFound).Once()
	}

	input := "name,logo_url\n" +
		"Acme,http://127.0.0.1/logo.png\n" +
		"Globex,http://169.254.169.254/latest/meta-data/\n" +
		"Initech,http://[::1]:8080/logo.png\n" +
		"Umbrella,http://localhost:6379/\n" +
		"Hooli,https://10.0.0.7/logo.png\n"

	result, err := f.svc.ImportCSV(ctx, strings.NewReader(input))

	require.NoError(t, err)
	assert.Zero(t, result.Created)
	require.Len(t, result.Errors, len(names))
	for i, rowErr := range result.Errors {
		assert.Equal(t, i+2, rowErr.Row)
		assert.Equal(t, names[i], rowErr.Name)
		assert.Equal(t, "logo_url must point to a public host", rowErr.Message)
	}
	assert.Empty(t, fetcher.urls)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestImportCSV_LogoURLRefusedAtDial(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("GET failed after 1 attempts: %w", httpclient.ErrBlockedAddress)}
	f := newFixture(t, Options{Fetcher: fetcher})
	ctx := context.Background()

	f.repo.On("GetByName", ctx, "Acme").Return(nil, apperrors.ErrNotFound).Once()
	f.repo.On("SlugExists", ctx, "acme").Return(false, nil).Once()
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Brand")).Return(nil).Once()

	result, err := f.svc.ImportCSV(ctx, strings.NewReader("name,logo_url\nAcme,https://internal.example/logo.png\n"))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "brand created, logo not imported: logo_url must point to a public host", result.Errors[0].Message)
	assert.Empty(t, f.store.Keys())
}

func TestImportCSV_LogoTooSmall(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]*httpclient.Fetched{
		"https://cdn.example/tiny.png": {Data: pngBytes(t, 20, 20), ContentType: "image/png"},
	}}
	f := newFixture(t, Options{Fetcher: fetcher})
	ctx := context.Background()

	f.repo.On("GetByName", ctx, "Acme").Return(nil, apperrors.ErrNotFound).Once()
	f.repo.On("SlugExists", ctx, "acme").Return(false, nil).Once()
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Brand")).Return(nil).Once()

	result, err := f.svc.ImportCSV(ctx, strings.NewReader("name,logo_url\nAcme,https://cdn.example/tiny.png\n"))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t,
		"brand created, logo not imported: Image must be at least 100x100 pixels. Uploaded image is 20x20.",
		result.Errors[0].Message)
	assert.Empty(t, f.store.Keys())
}

func TestImportCSV_LogoURLIgnoredWithoutFetcher(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.repo.On("GetByName", ctx, "Acme").Return(nil, apperrors.ErrNotFound).Once()
	f.repo.On("SlugExists", ctx, "acme").Return(false, nil).Once()
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Brand")).Return(nil).Once()

	result, err := f.svc.ImportCSV(ctx, strings.NewReader("name,logo_url\nAcme,https://cdn.example/acme.png\n"))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.Errors)
}

func TestImportCSV_CircuitOpen(t *testing.T) {
	fetcher := &fakeFetcher{err: httpclient.ErrCircuitOpen}
	f := newFixture(t, Options{Fetcher: fetcher})
	ctx := context.Background()

	f.repo.On("GetByName", ctx, "Acme").Return(nil, apperrors.ErrNotFound).Once()
	f.repo.On("SlugExists", ctx, "acme").Return(false, nil).Once()
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Brand")).Return(nil).Once()

	result, err := f.svc.ImportCSV(ctx, strings.NewReader("name,logo_url\nAcme,https://cdn.example/acme.png\n"))

	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "temporarily disabled")
}
