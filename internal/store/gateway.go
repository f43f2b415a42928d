package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"pricescope/marketworker/internal/catalog"
	"pricescope/marketworker/internal/metrics"
	"pricescope/marketworker/logger"
	apperrors "pricescope/marketworker/pkg/errors"
)

const seenCacheSize = 4096

// Gateway decides whether a normalized product is new and persists it. The
// find-then-insert sequence has no cross-process locking: two concurrent
// runs can both observe "not found" and both insert. That duplicate is a
// tolerated anomaly, not corruption, and is accepted instead of paying for
// a transactional upsert.
type Gateway struct {
	store   DocumentStore
	seen    *lru.Cache[string, struct{}]
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewGateway creates a gateway over a document store. m may be nil.
func NewGateway(store DocumentStore, m *metrics.Metrics) *Gateway {
	// Only errors on non-positive size
	seen, _ := lru.New[string, struct{}](seenCacheSize)
	return &Gateway{
		store:   store,
		seen:    seen,
		metrics: m,
		log:     logger.ForStore(),
	}
}

func dedupKey(name, sourceURL string) string {
	return name + "\x00" + sourceURL
}

// Save persists the product unless a record with the same (name, sourceURL)
// already exists. Duplicates are an expected outcome, not an error; the
// returned error is non-nil only when the store itself is unavailable.
func (g *Gateway) Save(ctx context.Context, product catalog.Product) (SaveResult, error) {
	key := dedupKey(product.Name, product.SourceURL)

	if g.seen.Contains(key) {
		g.metrics.IncProductSaved(AlreadyExists.String())
		return AlreadyExists, nil
	}

	existing, err := g.store.FindOne(ctx, product.Name, product.SourceURL)
	if err != nil {
		return SaveResultUnknown, apperrors.NewStore("lookup failed", err)
	}
	if existing != nil {
		g.seen.Add(key, struct{}{})
		g.metrics.IncProductSaved(AlreadyExists.String())
		return AlreadyExists, nil
	}

	if err := g.store.Insert(ctx, product); err != nil {
		return SaveResultUnknown, apperrors.NewStore("insert failed", err)
	}

	g.seen.Add(key, struct{}{})
	g.metrics.IncProductSaved(Inserted.String())
	g.log.Debug().
		Str("name", product.Name).
		Str("site", product.SourceSite).
		Msg("Product inserted")
	return Inserted, nil
}

// All returns every persisted product.
func (g *Gateway) All(ctx context.Context) ([]catalog.Product, error) {
	products, err := g.store.All(ctx)
	if err != nil {
		return nil, apperrors.NewStore("list failed", err)
	}
	return products, nil
}
