package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"bizdesk/backend/internal/domain"
)

const (
	snapshotKeyPrefix = "bizdesk:snapshot:"
	draftKeyPrefix    = "bizdesk:draft:"
)

// Redis wraps one client shared by the snapshot cache and the draft store.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string, password string, db int) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Redis{client: client}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Snapshots() *RedisSnapshotCache {
	return &RedisSnapshotCache{client: r.client}
}

func (r *Redis) Drafts() *RedisDraftStore {
	return &RedisDraftStore{client: r.client}
}

type RedisSnapshotCache struct {
	client *redis.Client
}

func (c *RedisSnapshotCache) Get(ctx context.Context, key string) (*domain.CatalogSnapshot, bool, error) {
	var snapshot domain.CatalogSnapshot
	ok, err := getJSON(ctx, c.client, snapshotKeyPrefix+key, &snapshot)
	if err != nil || !ok {
		return nil, false, err
	}
	return &snapshot, true, nil
}

func (c *RedisSnapshotCache) Set(ctx context.Context, key string, value *domain.CatalogSnapshot, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	return setJSON(ctx, c.client, snapshotKeyPrefix+key, value, ttl)
}

func (c *RedisSnapshotCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, snapshotKeyPrefix+key).Err()
}

type RedisDraftStore struct {
	client *redis.Client
}

func (s *RedisDraftStore) Get(ctx context.Context, id string) (*domain.InvoiceDraft, bool, error) {
	var draft domain.InvoiceDraft
	ok, err := getJSON(ctx, s.client, draftKeyPrefix+id, &draft)
	if err != nil || !ok {
		return nil, false, err
	}
	return &draft, true, nil
}

func (s *RedisDraftStore) Save(ctx context.Context, draft *domain.InvoiceDraft, ttl time.Duration) error {
	if draft == nil {
		return nil
	}
	return setJSON(ctx, s.client, draftKeyPrefix+draft.ID, draft, ttl)
}

func (s *RedisDraftStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, draftKeyPrefix+id).Err()
}

func getJSON(ctx context.Context, client *redis.Client, key string, dest any) (bool, error) {
	val, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func setJSON(ctx context.Context, client *redis.Client, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, payload, ttl).Err()
}
