package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"pricewatch-etl/internal/models"
)

// PostgresStore persists normalized products, upserting on slug so
// re-scraped listings update in place.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger

	mu       sync.RWMutex
	lastSave time.Time
}

func NewPostgresStore(ctx context.Context, databaseURL string, logger *logrus.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

const upsertProduct = `
INSERT INTO products (
	slug, name, price_amount, currency, is_available,
	brand, category, price_range, description, source_url, scraped_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
ON CONFLICT (slug) DO UPDATE SET
	name = EXCLUDED.name,
	price_amount = EXCLUDED.price_amount,
	currency = EXCLUDED.currency,
	is_available = EXCLUDED.is_available,
	brand = EXCLUDED.brand,
	category = EXCLUDED.category,
	price_range = EXCLUDED.price_range,
	description = EXCLUDED.description,
	source_url = EXCLUDED.source_url,
	scraped_at = EXCLUDED.scraped_at,
	updated_at = now()
RETURNING (xmax = 0) AS inserted`

func (s *PostgresStore) SaveBatch(ctx context.Context, items []models.EnrichedItem) (models.StoreResult, error) {
	var result models.StoreResult

	for _, item := range items {
		key := storeKey(item)
		if key == "" {
			result.Errors++
			continue
		}

		var inserted bool
		err := s.pool.QueryRow(ctx, upsertProduct,
			key, item.Name, item.PriceAmount, item.Currency, item.IsAvailable,
			item.Brand, item.Category, item.PriceRange, item.Description,
			item.SourceURL, item.ScrapedAt,
		).Scan(&inserted)
		if err != nil {
			s.logger.WithError(err).WithField("slug", key).Error("Failed to save product")
			result.Errors++
			continue
		}
		if inserted {
			result.Created++
		} else {
			result.Updated++
		}
	}

	if result.Created > 0 || result.Updated > 0 {
		s.mu.Lock()
		s.lastSave = time.Now()
		s.mu.Unlock()
	}

	return result, nil
}

const selectRecent = `
SELECT slug, name, price_amount, currency, is_available,
	brand, category, price_range, description, source_url, scraped_at
FROM products
ORDER BY updated_at DESC
LIMIT $1`

func (s *PostgresStore) RecentItems(ctx context.Context, limit int) ([]models.EnrichedItem, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent products: %w", err)
	}
	defer rows.Close()

	var items []models.EnrichedItem
	for rows.Next() {
		var item models.EnrichedItem
		err := rows.Scan(
			&item.Slug, &item.Name, &item.PriceAmount, &item.Currency,
			&item.IsAvailable, &item.Brand, &item.Category, &item.PriceRange,
			&item.Description, &item.SourceURL, &item.ScrapedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) HasData() bool {
	var exists bool
	err := s.pool.QueryRow(context.Background(), "SELECT EXISTS (SELECT 1 FROM products)").Scan(&exists)
	return err == nil && exists
}

func (s *PostgresStore) LastSaveTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSave
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
