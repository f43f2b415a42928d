package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"pricescope/marketworker/internal/catalog"
	"pricescope/marketworker/internal/registry"
)

var numberPattern = regexp.MustCompile(`[0-9]+(?:[.,][0-9]+)*`)

// Product converts a raw listing into the canonical record. It never fails:
// unparseable numeric fields collapse to zero and everything else passes
// through as trimmed text. SourceURL is the site's base search URL, not the
// paginated one, so the dedup identity is stable across page boundaries.
func Product(raw catalog.RawListing, cfg registry.SiteConfig) catalog.Product {
	return catalog.Product{
		Name:            strings.TrimSpace(raw[catalog.FieldName]),
		Price:           Price(raw[catalog.FieldPrice]),
		OriginalPrice:   Price(raw[catalog.FieldOriginalPrice]),
		DiscountPercent: Discount(raw[catalog.FieldDiscount]),
		Rating:          strings.TrimSpace(raw[catalog.FieldRating]),
		Reviews:         strings.TrimSpace(raw[catalog.FieldReviews]),
		Vendor:          strings.TrimSpace(raw[catalog.FieldVendor]),
		Availability:    strings.TrimSpace(raw[catalog.FieldAvailability]),
		Badge:           strings.TrimSpace(raw[catalog.FieldBadge]),
		ImageURL:        strings.TrimSpace(raw[catalog.FieldImage]),
		SourceSite:      cfg.Name,
		SourceURL:       cfg.SearchURL,
		ScrapedAt:       time.Now(),
	}
}

// Price strips currency symbols and thousands separators and parses the
// first numeric run as a decimal. Unparseable text yields 0, never an error
// and never a negative value.
func Price(text string) float64 {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0
	}
	match = strings.ReplaceAll(match, ",", "")
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return value
}

// Discount strips a trailing percent sign and parses the remainder as a
// decimal, clamped to [0,100]. Unparseable text yields 0. The displayed
// discount is used verbatim; it is never back-computed from the two prices.
func Discount(text string) float64 {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "%")
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
