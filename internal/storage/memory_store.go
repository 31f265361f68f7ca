package storage

import (
	"context"
	"sync"
	"time"

	"pricewatch-etl/internal/models"
)

// recentCap bounds the recency buffer the quality sampler reads from.
const recentCap = 500

// MemoryStore is an in-process product store keyed by slug (falling
// back to source URL, then name). It distinguishes created from updated
// on save, which the Postgres store mirrors with an upsert.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]models.EnrichedItem
	recent   []models.EnrichedItem
	lastSave time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]models.EnrichedItem),
	}
}

func storeKey(item models.EnrichedItem) string {
	if item.Slug != "" {
		return item.Slug
	}
	if item.SourceURL != nil && *item.SourceURL != "" {
		return *item.SourceURL
	}
	return item.Name
}

func (s *MemoryStore) SaveBatch(_ context.Context, items []models.EnrichedItem) (models.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result models.StoreResult
	for _, item := range items {
		key := storeKey(item)
		if key == "" {
			result.Errors++
			continue
		}
		if _, exists := s.items[key]; exists {
			result.Updated++
		} else {
			result.Created++
		}
		s.items[key] = item
		s.recent = append(s.recent, item)
	}

	if len(s.recent) > recentCap {
		s.recent = s.recent[len(s.recent)-recentCap:]
	}
	s.lastSave = time.Now()

	return result, nil
}

// RecentItems returns up to limit of the most recently saved items,
// newest first. The memory store keeps no per-provider partitioning;
// recency stands in for it.
func (s *MemoryStore) RecentItems(_ context.Context, limit int) ([]models.EnrichedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	items := make([]models.EnrichedItem, 0, limit)
	for i := len(s.recent) - 1; i >= len(s.recent)-limit; i-- {
		items = append(items, s.recent[i])
	}
	return items, nil
}

func (s *MemoryStore) HasData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items) > 0
}

func (s *MemoryStore) LastSaveTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSave
}
