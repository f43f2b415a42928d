package registry

import (
	"pricescope/marketworker/config"
)

// NewDefault builds the registry with the built-in site catalog. Search URLs
// come from the config so deployments can repoint them without a rebuild.
func NewDefault(cfg config.Config) *Registry {
	return New(
		SiteConfig{
			Name:              "Walmart",
			SearchURL:         cfg.WalmartURL,
			ContainerSelector: "div.search-result-gridview-item",
			Fields: FieldSelectors{
				Name:    "a.product-title-link > span",
				Price:   "span.price-main > span.visuallyhidden",
				Rating:  "span.stars-reviews-count > span",
				Reviews: "span.stars-reviews-count > span",
				Vendor:  "div.sold-by > span",
			},
			PaginationParam: "&page=",
			Render:          false,
		},
		SiteConfig{
			Name:              "Amazon",
			SearchURL:         cfg.AmazonURL,
			ContainerSelector: "div.s-main-slot > div.s-result-item",
			Fields: FieldSelectors{
				Name:          "h2.a-size-mini > a > span",
				Price:         "span.a-price > span.a-offscreen",
				OriginalPrice: "span.a-price.a-text-price > span.a-offscreen",
				Rating:        "span.a-icon-alt",
				Reviews:       "span.a-size-base",
				Vendor:        "span.s-line-clamp-1 > a",
				Availability:  "span.a-size-small.a-color-base",
				Badge:         "span.s-badge-text",
				Image:         "img.s-image",
			},
			PaginationParam: "&page=",
			Render:          true,
		},
		SiteConfig{
			Name:              "Best Buy",
			SearchURL:         cfg.BestBuyURL,
			ContainerSelector: "div.sku-item",
			Fields: FieldSelectors{
				Name:    "h4.sku-header > a",
				Price:   "div.priceView-customer-price > span",
				Rating:  "div.c-ratings-reviews-v4 > p > span.c-reviews > span",
				Reviews: "div.c-ratings-reviews-v4 > p > span.c-reviews",
			},
			PaginationParam: "&page=",
			Render:          false,
		},
		SiteConfig{
			Name:              "AliExpress",
			SearchURL:         cfg.AliExpressURL,
			ContainerSelector: "div.JIIxO",
			Fields: FieldSelectors{
				Name:     "a._3t7zg > h1",
				Price:    "span._12A8D > span",
				Rating:   "span.eXPaM > span",
				Reviews:  "span.eXPaM > span:nth-child(2)",
				Vendor:   "a._18_85 > span",
				Discount: "span.mOx4j",
			},
			PaginationParam: "&page=",
			Render:          true,
		},
	)
}
