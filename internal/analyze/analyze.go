package analyze

import (
	"math"
	"sort"

	"pricescope/marketworker/internal/catalog"
)

// SitePrice is one site's price for a product name.
type SitePrice struct {
	Site  string  `json:"site"`
	Price float64 `json:"price"`
}

// PriceComparison groups the prices observed for one product name.
type PriceComparison struct {
	Name   string      `json:"name"`
	Prices []SitePrice `json:"prices"`
}

// VendorCount is a vendor with the number of products it sells.
type VendorCount struct {
	Vendor string `json:"vendor"`
	Count  int    `json:"count"`
}

// Stats summarizes the persisted catalog.
type Stats struct {
	AveragePrice      float64       `json:"average_price"`
	TopVendors        []VendorCount `json:"top_vendors"`
	PriceDistribution map[int]int   `json:"price_distribution"`
}

const (
	topVendorLimit  = 10
	priceBucketSize = 10
)

// ComparePrices groups products by name and lists each site's price for the
// group. Group order follows first appearance; prices keep input order.
func ComparePrices(products []catalog.Product) []PriceComparison {
	var order []string
	grouped := make(map[string][]SitePrice)

	for _, p := range products {
		if _, ok := grouped[p.Name]; !ok {
			order = append(order, p.Name)
		}
		grouped[p.Name] = append(grouped[p.Name], SitePrice{Site: p.SourceSite, Price: p.Price})
	}

	out := make([]PriceComparison, 0, len(order))
	for _, name := range order {
		out = append(out, PriceComparison{Name: name, Prices: grouped[name]})
	}
	return out
}

// Summarize computes the catalog-level aggregates: average price, top
// vendors by product count and the price distribution in fixed-size buckets.
func Summarize(products []catalog.Product) Stats {
	stats := Stats{
		PriceDistribution: make(map[int]int),
	}
	if len(products) == 0 {
		return stats
	}

	var sum float64
	vendorCounts := make(map[string]int)
	for _, p := range products {
		sum += p.Price
		if p.Vendor != "" {
			vendorCounts[p.Vendor]++
		}
		bucket := int(math.Floor(p.Price/priceBucketSize)) * priceBucketSize
		stats.PriceDistribution[bucket]++
	}
	stats.AveragePrice = sum / float64(len(products))

	for vendor, count := range vendorCounts {
		stats.TopVendors = append(stats.TopVendors, VendorCount{Vendor: vendor, Count: count})
	}
	sort.Slice(stats.TopVendors, func(i, j int) bool {
		if stats.TopVendors[i].Count != stats.TopVendors[j].Count {
			return stats.TopVendors[i].Count > stats.TopVendors[j].Count
		}
		return stats.TopVendors[i].Vendor < stats.TopVendors[j].Vendor
	})
	if len(stats.TopVendors) > topVendorLimit {
		stats.TopVendors = stats.TopVendors[:topVendorLimit]
	}

	return stats
}
