package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/redis"

	"reminderd/internal/model"
)

// RedisRepository caches reminders by id for the API read path. Entries
// expire on their own; mutations from the worker are allowed to go stale
// within the TTL.
type RedisRepository struct {
	client     *redis.Client
	expiration time.Duration
}

func NewRedisRepository(client *redis.Client, expiration time.Duration) *RedisRepository {
	return &RedisRepository{client: client, expiration: expiration}
}

func (r *RedisRepository) SaveReminder(ctx context.Context, rem *model.Reminder) error {
	data, err := json.Marshal(rem)
	if err != nil {
		return fmt.Errorf("redis: marshal reminder: %w", err)
	}
	if err := r.client.SetWithExpiration(ctx, rem.ID.String(), data, r.expiration); err != nil {
		return fmt.Errorf("redis: set key %s: %w", rem.ID, err)
	}
	return nil
}

func (r *RedisRepository) GetReminder(ctx context.Context, id uuid.UUID) (*model.Reminder, error) {
	data, err := r.client.Get(ctx, id.String())
	if err != nil {
		return nil, err
	}

	var rem model.Reminder
	if err := json.Unmarshal([]byte(data), &rem); err != nil {
		return nil, fmt.Errorf("redis: unmarshal reminder: %w", err)
	}
	return &rem, nil
}

func (r *RedisRepository) DeleteReminder(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, id.String()); err != nil {
		return fmt.Errorf("redis: delete reminder %s: %w", id, err)
	}
	return nil
}
