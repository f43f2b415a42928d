package store

import (
	"context"

	"pricescope/marketworker/internal/catalog"
)

// DocumentStore is the abstract persistence used by the gateway. Lookup
// criteria is always an exact match on the (name, sourceURL) pair.
type DocumentStore interface {
	// FindOne returns the stored product for the key, or (nil, nil) when
	// no record exists.
	FindOne(ctx context.Context, name, sourceURL string) (*catalog.Product, error)

	// Insert persists a new product record.
	Insert(ctx context.Context, product catalog.Product) error

	// All returns every persisted product.
	All(ctx context.Context) ([]catalog.Product, error)

	// Close releases the underlying connection.
	Close() error
}

// SaveResult reports what the gateway did with a product.
type SaveResult int

const (
	// SaveResultUnknown is the zero value, returned alongside errors so a
	// discarded result can never read as a successful insert.
	SaveResultUnknown SaveResult = iota
	// Inserted means the product was new and has been persisted.
	Inserted
	// AlreadyExists means a record with the same (name, sourceURL) was
	// already stored and nothing was written.
	AlreadyExists
)

// String implements fmt.Stringer
func (r SaveResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}
