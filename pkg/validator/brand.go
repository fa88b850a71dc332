package validator

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidWebsite   = errors.New("Enter a valid website URL (e.g. https://example.com)")
	ErrInvalidBrandName = errors.New("Brand name can only contain letters, numbers, spaces, hyphens, and ampersands")
)

var (
	websiteRegexp   = regexp.MustCompile(`^(https?://)?([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,6}(:[0-9]{1,5})?(/.*)?$`)
	brandNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9\s\-&]+$`)
)

func init() {
	_ = validate.RegisterValidation("website", func(fl validator.FieldLevel) bool {
		return ValidateWebsiteURL(fl.Field().String()) == nil
	})
	_ = validate.RegisterValidation("brandname", func(fl validator.FieldLevel) bool {
		return ValidateBrandName(fl.Field().String()) == nil
	})
}

// ValidateWebsiteURL accepts an optional http(s) scheme, a dotted host with a
// 2-6 letter TLD, an optional port and an optional path.
func ValidateWebsiteURL(s string) error {
	if !websiteRegexp.MatchString(s) {
		return ErrInvalidWebsite
	}
	return nil
}

// ValidateBrandName allows letters, digits, whitespace, hyphens and ampersands.
func ValidateBrandName(s string) error {
	if !brandNameRegexp.MatchString(s) {
		return ErrInvalidBrandName
	}
	return nil
}
