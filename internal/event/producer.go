package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/brandcatalog/internal/domain"
	pkgkafka "github.com/utafrali/brandcatalog/pkg/kafka"
)

// Topic carries every brand lifecycle event; consumers switch on event_type.
const Topic = "catalog.brand.events"

// Event types.
const (
	TypeBrandCreated = "brand.created"
	TypeBrandUpdated = "brand.updated"
	TypeBrandDeleted = "brand.deleted"
)

const (
	aggregateType = "brand"
	source        = "brandcatalog"
)

// BrandData is the payload of created and updated events.
type BrandData struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Slug             string  `json:"slug"`
	LogoURL          *string `json:"logo_url,omitempty"`
	LogoThumbnailURL *string `json:"logo_thumbnail_url,omitempty"`
	Website          string  `json:"website,omitempty"`
	Featured         bool    `json:"featured"`
}

// BrandDeletedData is the payload of brand.deleted.
type BrandDeletedData struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

// Publisher is the Kafka side of Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes brand events.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a brand event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func dataOf(b *domain.Brand) BrandData {
	return BrandData{
		ID:               b.ID,
		Name:             b.Name,
		Slug:             b.Slug,
		LogoURL:          b.LogoURL,
		LogoThumbnailURL: b.LogoThumbnailURL,
		Website:          b.Website,
		Featured:         b.Featured,
	}
}

// BrandCreated publishes brand.created.
func (p *Producer) BrandCreated(ctx context.Context, b *domain.Brand) error {
	return p.publish(ctx, TypeBrandCreated, b.ID, dataOf(b))
}

// BrandUpdated publishes brand.updated.
func (p *Producer) BrandUpdated(ctx context.Context, b *domain.Brand) error {
	return p.publish(ctx, TypeBrandUpdated, b.ID, dataOf(b))
}

// BrandDeleted publishes brand.deleted.
func (p *Producer) BrandDeleted(ctx context.Context, b *domain.Brand) error {
	return p.publish(ctx, TypeBrandDeleted, b.ID, BrandDeletedData{ID: b.ID, Slug: b.Slug})
}

func (p *Producer) publish(ctx context.Context, eventType, id string, data any) error {
	evt, err := pkgkafka.NewEvent(eventType, aggregateType, id, source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if err := p.kafka.Publish(ctx, Topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	p.logger.DebugContext(ctx, "published brand event",
		slog.String("event_type", eventType),
		slog.String("brand_id", id),
	)
	return nil
}
