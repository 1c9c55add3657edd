package infra

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cartKeyPrefix = "cart:"

// RedisCartStore keeps one hash per owner: field = product id, value = quantity.
// Idle carts expire after ttl.
type RedisCartStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCartStore(rdb *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{rdb: rdb, ttl: ttl}
}

func cartKey(owner uuid.UUID) string { return cartKeyPrefix + owner.String() }

// Items returns the cart sorted by product id. Malformed fields are skipped.
func (s *RedisCartStore) Items(ctx context.Context, owner uuid.UUID) ([]model.CartItem, error) {
	raw, err := s.rdb.HGetAll(ctx, cartKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart: read: %w", err)
	}
	items := make([]model.CartItem, 0, len(raw))
	for field, value := range raw {
		pid, err := uuid.Parse(field)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(value)
		if err != nil || qty < 1 {
			continue
		}
		items = append(items, model.CartItem{ProductID: pid, Quantity: qty})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID.String() < items[j].ProductID.String()
	})
	return items, nil
}

// SetItem overwrites the quantity of one product and refreshes the cart TTL.
func (s *RedisCartStore) SetItem(ctx context.Context, owner, productID uuid.UUID, quantity int) error {
	key := cartKey(owner)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, productID.String(), quantity)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cart: set item: %w", err)
	}
	return nil
}

func (s *RedisCartStore) RemoveItem(ctx context.Context, owner, productID uuid.UUID) error {
	if err := s.rdb.HDel(ctx, cartKey(owner), productID.String()).Err(); err != nil {
		return fmt.Errorf("cart: remove item: %w", err)
	}
	return nil
}

func (s *RedisCartStore) Clear(ctx context.Context, owner uuid.UUID) error {
	if err := s.rdb.Del(ctx, cartKey(owner)).Err(); err != nil {
		return fmt.Errorf("cart: clear: %w", err)
	}
	return nil
}
