package store

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"

	"pricescope/marketworker/internal/catalog"
)

// SQLiteStore implements DocumentStore on an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		price REAL NOT NULL,
		original_price REAL,
		discount_percent REAL,
		rating TEXT,
		reviews TEXT,
		vendor TEXT,
		availability TEXT,
		badge TEXT,
		image_url TEXT,
		source_site TEXT NOT NULL,
		source_url TEXT NOT NULL,
		scraped_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_products_identity ON products(name, source_url);
	`
	_, err := s.db.Exec(createTableSQL)
	return err
}

// FindOne returns the product matching (name, sourceURL), or (nil, nil).
func (s *SQLiteStore) FindOne(ctx context.Context, name, sourceURL string) (*catalog.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, price, original_price, discount_percent, rating, reviews, vendor,
			availability, badge, image_url, source_site, source_url, scraped_at
		FROM products WHERE name = ? AND source_url = ? LIMIT 1`,
		name, sourceURL,
	)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Insert persists a new product row.
func (s *SQLiteStore) Insert(ctx context.Context, p catalog.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (name, price, original_price, discount_percent, rating, reviews,
			vendor, availability, badge, image_url, source_site, source_url, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Price, p.OriginalPrice, p.DiscountPercent, p.Rating, p.Reviews,
		p.Vendor, p.Availability, p.Badge, p.ImageURL, p.SourceSite, p.SourceURL, p.ScrapedAt,
	)
	return err
}

// All returns every persisted product in insertion order.
func (s *SQLiteStore) All(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, price, original_price, discount_percent, rating, reviews, vendor,
			availability, badge, image_url, source_site, source_url, scraped_at
		FROM products ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*catalog.Product, error) {
	var p catalog.Product
	var originalPrice, discount sql.NullFloat64
	var rating, reviews, vendor, availability, badge, imageURL sql.NullString

	err := row.Scan(&p.Name, &p.Price, &originalPrice, &discount, &rating, &reviews,
		&vendor, &availability, &badge, &imageURL, &p.SourceSite, &p.SourceURL, &p.ScrapedAt)
	if err != nil {
		return nil, err
	}

	p.OriginalPrice = originalPrice.Float64
	p.DiscountPercent = discount.Float64
	p.Rating = rating.String
	p.Reviews = reviews.String
	p.Vendor = vendor.String
	p.Availability = availability.String
	p.Badge = badge.String
	p.ImageURL = imageURL.String
	return &p, nil
}
