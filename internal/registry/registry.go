package registry

import (
	"fmt"
	"strings"

	apperrors "pricescope/marketworker/pkg/errors"
)

// FieldSelectors maps each collected field to a CSS selector, resolved scoped
// to a listing container. Name and Price are required; an empty selector means
// the field is not collected for the site.
type FieldSelectors struct {
	Name          string
	Price         string
	OriginalPrice string
	Rating        string
	Reviews       string
	Vendor        string
	Discount      string
	Availability  string
	Badge         string
	Image         string
}

// SiteConfig is the static extraction-rule record for one target site.
// Immutable after registry construction.
type SiteConfig struct {
	Name              string
	SearchURL         string
	ContainerSelector string
	Fields            FieldSelectors
	PaginationParam   string
	Render            bool
}

// Validate reports whether the config is usable for scraping.
func (c SiteConfig) Validate() error {
	if c.Name == "" {
		return apperrors.NewConfig(c.Name, "site name is empty")
	}
	if c.SearchURL == "" {
		return apperrors.NewConfig(c.Name, "search URL is empty")
	}
	if c.ContainerSelector == "" {
		return apperrors.NewConfig(c.Name, "container selector is empty")
	}
	if c.Fields.Name == "" {
		return apperrors.NewConfig(c.Name, "name selector is empty")
	}
	if c.Fields.Price == "" {
		return apperrors.NewConfig(c.Name, "price selector is empty")
	}
	return nil
}

// PageURL returns the paginated URL for a page number.
func (c SiteConfig) PageURL(page int) string {
	if c.PaginationParam == "" {
		return c.SearchURL
	}
	return fmt.Sprintf("%s%s%d", c.SearchURL, c.PaginationParam, page)
}

// ErrNotFound is returned by Get for unknown site names.
type ErrNotFound struct {
	Name string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("no site config named %q", e.Name)
}

// Registry is a read-only catalog of site configs in insertion order.
// Lookups are case-insensitive.
type Registry struct {
	order   []string
	configs map[string]SiteConfig
}

func registryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// New builds a registry from the given configs, keeping their order.
func New(configs ...SiteConfig) *Registry {
	r := &Registry{
		configs: make(map[string]SiteConfig, len(configs)),
	}
	for _, c := range configs {
		key := registryKey(c.Name)
		if _, dup := r.configs[key]; dup {
			continue
		}
		r.order = append(r.order, key)
		r.configs[key] = c
	}
	return r
}

// Get returns the config for a site name.
func (r *Registry) Get(name string) (SiteConfig, error) {
	c, ok := r.configs[registryKey(name)]
	if !ok {
		return SiteConfig{}, ErrNotFound{Name: name}
	}
	return c, nil
}

// All returns every config in registration order.
func (r *Registry) All() []SiteConfig {
	out := make([]SiteConfig, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.configs[name])
	}
	return out
}

// Len returns the number of registered sites.
func (r *Registry) Len() int {
	return len(r.order)
}
