package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"pricescope/marketworker/internal/catalog"
)

const productIndexKey = "products:index"

// RedisStore implements DocumentStore on Redis: one JSON value per product
// keyed by a digest of (name, sourceURL), plus a set indexing all keys.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis at addr.
func NewRedisStore(addr string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
	}
}

func productKey(name, sourceURL string) string {
	sum := sha256.Sum256([]byte(name + "\x00" + sourceURL))
	return "product:" + hex.EncodeToString(sum[:16])
}

// FindOne returns the product matching (name, sourceURL), or (nil, nil).
func (s *RedisStore) FindOne(ctx context.Context, name, sourceURL string) (*catalog.Product, error) {
	data, err := s.client.Get(ctx, productKey(name, sourceURL)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p catalog.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert persists a new product record and indexes its key.
func (s *RedisStore) Insert(ctx context.Context, p catalog.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	key := productKey(p.Name, p.SourceURL)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, productIndexKey, key)
	_, err = pipe.Exec(ctx)
	return err
}

// All returns every persisted product.
func (s *RedisStore) All(ctx context.Context) ([]catalog.Product, error) {
	keys, err := s.client.SMembers(ctx, productIndexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var products []catalog.Product
	for _, v := range values {
		text, ok := v.(string)
		if !ok {
			// Key expired or deleted between SMembers and MGet
			continue
		}
		var p catalog.Product
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
