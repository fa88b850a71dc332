package domain

import (
	"time"
	"unicode/utf8"
)

// Field limits enforced by the brands table.
const (
	MaxNameLength    = 100
	MaxSlugLength    = 100
	MaxWebsiteLength = 255
)

// MetaDescriptionLength is the rune limit for Detail.MetaDescription.
const MetaDescriptionLength = 160

// MetaTitleSuffix is appended to the brand name in Detail.MetaTitle.
const MetaTitleSuffix = " | Our Brands"

// Brand is a product brand shown in the storefront.
type Brand struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	LogoURL          *string   `json:"logo_url,omitempty"`
	LogoThumbnailURL *string   `json:"logo_thumbnail_url,omitempty"`
	LogoKey          *string   `json:"-"`
	ThumbnailKey     *string   `json:"-"`
	Description      string    `json:"description"`
	Website          string    `json:"website"`
	Featured         bool      `json:"featured"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Detail is a brand with the page metadata rendered by the public detail endpoint.
type Detail struct {
	Brand
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
}

// NewDetail derives page metadata from b.
func NewDetail(b *Brand) *Detail {
	return &Detail{
		Brand:           *b,
		MetaTitle:       b.Name + MetaTitleSuffix,
		MetaDescription: truncateRunes(b.Description, MetaDescriptionLength),
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// ListFilter selects brands for the admin list. Results are ordered by name.
type ListFilter struct {
	Featured *bool
	Search   string
	Page     int
	PerPage  int
}

// ImportRowError is a rejected CSV row. Row counts the header as row 1.
type ImportRowError struct {
	Row     int    `json:"row"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

// ImportResult summarises a CSV import.
type ImportResult struct {
	Created int              `json:"created"`
	Skipped int              `json:"skipped"`
	Errors  []ImportRowError `json:"errors"`
}
