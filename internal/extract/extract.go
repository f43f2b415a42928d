package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pricescope/marketworker/internal/catalog"
	"pricescope/marketworker/internal/registry"
	apperrors "pricescope/marketworker/pkg/errors"
)

// Listings parses a fetched page and returns one RawListing per container
// element that carries both a name and a price. Field selectors resolve
// scoped to their container, never document-wide. Pure function, no I/O.
func Listings(body []byte, cfg registry.SiteConfig) ([]catalog.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewParsing(cfg.Name, "failed to parse page HTML", err)
	}

	var listings []catalog.RawListing
	doc.Find(cfg.ContainerSelector).Each(func(_ int, s *goquery.Selection) {
		listing := extractOne(s, cfg)
		if listing != nil {
			listings = append(listings, listing)
		}
	})

	return listings, nil
}

// extractOne resolves every configured field inside one container. Containers
// missing name or price text yield nil and are dropped silently.
func extractOne(s *goquery.Selection, cfg registry.SiteConfig) catalog.RawListing {
	listing := catalog.RawListing{}

	setText(listing, catalog.FieldName, s, cfg.Fields.Name)
	setText(listing, catalog.FieldPrice, s, cfg.Fields.Price)

	if listing[catalog.FieldName] == "" || listing[catalog.FieldPrice] == "" {
		return nil
	}

	setText(listing, catalog.FieldOriginalPrice, s, cfg.Fields.OriginalPrice)
	setText(listing, catalog.FieldRating, s, cfg.Fields.Rating)
	setText(listing, catalog.FieldReviews, s, cfg.Fields.Reviews)
	setText(listing, catalog.FieldVendor, s, cfg.Fields.Vendor)
	setText(listing, catalog.FieldDiscount, s, cfg.Fields.Discount)
	setText(listing, catalog.FieldAvailability, s, cfg.Fields.Availability)
	setText(listing, catalog.FieldBadge, s, cfg.Fields.Badge)
	setAttr(listing, catalog.FieldImage, s, cfg.Fields.Image, "src")

	return listing
}

// setText stores the trimmed text of the first selector match. An empty
// selector or no match leaves the field absent.
func setText(listing catalog.RawListing, field string, s *goquery.Selection, selector string) {
	if selector == "" {
		return
	}
	sel := s.Find(selector)
	if sel.Length() == 0 {
		return
	}
	text := strings.TrimSpace(sel.First().Text())
	if text == "" {
		return
	}
	listing[field] = text
}

// setAttr stores an attribute value of the first selector match.
func setAttr(listing catalog.RawListing, field string, s *goquery.Selection, selector, attr string) {
	if selector == "" {
		return
	}
	sel := s.Find(selector)
	if sel.Length() == 0 {
		return
	}
	value, exists := sel.First().Attr(attr)
	value = strings.TrimSpace(value)
	if !exists || value == "" {
		return
	}
	listing[field] = value
}
