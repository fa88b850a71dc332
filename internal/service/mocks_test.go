package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/brandcatalog/internal/domain"
	"github.com/utafrali/brandcatalog/internal/storage/memory"
	"github.com/utafrali/brandcatalog/pkg/httpclient"
	"github.com/utafrali/brandcatalog/pkg/imaging"
	"github.com/utafrali/brandcatalog/pkg/slug"
)

// --- Mock Repository ---

type mockBrandRepository struct {
	mock.Mock
}

func (m *mockBrandRepository) Create(ctx context.Context, b *domain.Brand) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *mockBrandRepository) GetByID(ctx context.Context, id string) (*domain.Brand, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Brand), args.Error(1)
}

func (m *mockBrandRepository) GetBySlug(ctx context.Context, s string) (*domain.Brand, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Brand), args.Error(1)
}

func (m *mockBrandRepository) GetByName(ctx context.Context, name string) (*domain.Brand, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Brand), args.Error(1)
}

func (m *mockBrandRepository) SlugExists(ctx context.Context, s string) (bool, error) {
	args := m.Called(ctx, s)
	return args.Bool(0), args.Error(1)
}

func (m *mockBrandRepository) Count(ctx context.Context, filter domain.ListFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockBrandRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Brand, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Brand), args.Int(1), args.Error(2)
}

func (m *mockBrandRepository) Update(ctx context.Context, b *domain.Brand) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *mockBrandRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Fakes ---

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]*domain.Detail
	invalidated []string
	err         error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*domain.Detail)}
}

func (c *fakeCache) Get(_ context.Context, s string) (*domain.Detail, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	d, ok := c.entries[s]
	return d, ok, nil
}

func (c *fakeCache) Set(_ context.Context, d *domain.Detail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[d.Slug] = d
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, slugs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range slugs {
		delete(c.entries, s)
		c.invalidated = append(c.invalidated, s)
	}
	return c.err
}

type recordedEvent struct {
	Type  string
	Brand domain.Brand
}

type fakeEvents struct {
	events []recordedEvent
	err    error
}

func (e *fakeEvents) record(t string, b *domain.Brand) error {
	e.events = append(e.events, recordedEvent{Type: t, Brand: *b})
	return e.err
}

func (e *fakeEvents) BrandCreated(_ context.Context, b *domain.Brand) error {
	return e.record("brand.created", b)
}

func (e *fakeEvents) BrandUpdated(_ context.Context, b *domain.Brand) error {
	return e.record("brand.updated", b)
}

func (e *fakeEvents) BrandDeleted(_ context.Context, b *domain.Brand) error {
	return e.record("brand.deleted", b)
}

func (e *fakeEvents) types() []string {
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

type fakeFetcher struct {
	files map[string]*httpclient.Fetched
	err   error
	urls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, _ int64) (*httpclient.Fetched, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	got, ok := f.files[url]
	if !ok {
		return nil, &httpclient.StatusError{URL: url, Code: 404}
	}
	return got, nil
}

// --- Test Helpers ---

type fixture struct {
	repo   *mockBrandRepository
	store  *memory.Storage
	cache  *fakeCache
	events *fakeEvents
	svc    *BrandService
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		repo:   new(mockBrandRepository),
		store:  memory.New("/media"),
		cache:  newFakeCache(),
		events: &fakeEvents{},
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	if opts.Slugs == nil {
		opts.Slugs = slug.NewGenerator(50, 100)
	}
	f.svc = NewBrandService(f.repo, f.store, f.cache, f.events, opts, newTestLogger())
	t.Cleanup(func() { f.repo.AssertExpectations(t) })
	return f
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func sampleBrand() *domain.Brand {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	return &domain.Brand{
		ID:          "8f6f0b52-5a2c-4f6b-9a51-2f1a3d2c1e01",
		Name:        "Acme",
		Slug:        "acme",
		Description: "Tools for everyone",
		Website:     "https://acme.example",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngFile(t *testing.T, w, h int) *imaging.File {
	return &imaging.File{Name: "logo.png", ContentType: "image/png", Data: pngBytes(t, w, h)}
}
