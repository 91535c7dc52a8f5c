package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
)

// MemoryCartStore keeps carts in process memory. Carts are lost on restart.
type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[string][]models.CartItem
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string][]models.CartItem)}
}

func (s *MemoryCartStore) Load(_ context.Context, cartID string) ([]models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CartItem{}, s.carts[cartID]...), nil
}

func (s *MemoryCartStore) Save(_ context.Context, cartID string, items []models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(items) == 0 {
		delete(s.carts, cartID)
		return nil
	}
	s.carts[cartID] = append([]models.CartItem{}, items...)
	return nil
}

// RedisCartStore keeps each cart as a JSON value that expires after ttl of
// inactivity.
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func cartKey(cartID string) string {
	return "shoegame:cart:" + cartID
}

func (s *RedisCartStore) Load(ctx context.Context, cartID string) ([]models.CartItem, error) {
	data, err := s.client.Get(ctx, cartKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.CartItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart %s: %w", cartID, err)
	}

	items := []models.CartItem{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", cartID, err)
	}
	return items, nil
}

func (s *RedisCartStore) Save(ctx context.Context, cartID string, items []models.CartItem) error {
	if len(items) == 0 {
		if err := s.client.Del(ctx, cartKey(cartID)).Err(); err != nil {
			return fmt.Errorf("failed to clear cart %s: %w", cartID, err)
		}
		return nil
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode cart %s: %w", cartID, err)
	}
	if err := s.client.Set(ctx, cartKey(cartID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart %s: %w", cartID, err)
	}
	return nil
}
