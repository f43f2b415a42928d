package catalog

import "time"

// Well-known RawListing field names. The extractor populates these from the
// site config's field selectors; the normalizer reads them back.
const (
	FieldName          = "name"
	FieldPrice         = "price"
	FieldOriginalPrice = "originalPrice"
	FieldRating        = "rating"
	FieldReviews       = "reviews"
	FieldVendor        = "vendor"
	FieldDiscount      = "discount"
	FieldAvailability  = "availability"
	FieldBadge         = "badge"
	FieldImage         = "image"
)

// RawListing is one extracted-but-unnormalized listing from a single page.
// Fields whose selector did not match (or was not configured) are absent.
type RawListing map[string]string

// Product is the canonical normalized record persisted by the store.
type Product struct {
	Name            string    `json:"name"`
	Price           float64   `json:"price"`
	OriginalPrice   float64   `json:"original_price,omitempty"`
	DiscountPercent float64   `json:"discount_percent,omitempty"`
	Rating          string    `json:"rating,omitempty"`
	Reviews         string    `json:"reviews,omitempty"`
	Vendor          string    `json:"vendor,omitempty"`
	Availability    string    `json:"availability,omitempty"`
	Badge           string    `json:"badge,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	SourceSite      string    `json:"source_site"`
	SourceURL       string    `json:"source_url"`
	ScrapedAt       time.Time `json:"scraped_at"`
}

// Key returns the deduplication identity of the product.
func (p Product) Key() (name, sourceURL string) {
	return p.Name, p.SourceURL
}

// Failure records one page (or site) that contributed nothing to a run.
type Failure struct {
	Site     string `json:"site"`
	Page     int    `json:"page"`
	Attempts int    `json:"attempts"`
	Err      string `json:"error"`
}

// ScrapeRun is the aggregate result of one pipeline invocation. It exists
// only for the duration of the invocation and is never persisted.
type ScrapeRun struct {
	Products []Product `json:"products"`
	Failures []Failure `json:"failures"`
}
