package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"file-share-bot/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SessionRepository 保存管理员的多步操作状态，条目在 TTL 后自动过期。
type SessionRepository interface {
	Get(ctx context.Context, adminID int64) (*model.FlowState, error)
	Put(ctx context.Context, state *model.FlowState) error
	Delete(ctx context.Context, adminID int64) error
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSessionRepository 创建基于 Redis 的 SessionRepository。
func NewSessionRepository(redisClient *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

func sessionKey(adminID int64) string {
	return fmt.Sprintf("fsb:flow:%d", adminID)
}

func (r *redisSessionRepository) Get(ctx context.Context, adminID int64) (*model.FlowState, error) {
	data, err := r.redisClient.Get(ctx, sessionKey(adminID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow state: %w", err)
	}
	var st model.FlowState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow state: %w", err)
	}
	return &st, nil
}

func (r *redisSessionRepository) Put(ctx context.Context, state *model.FlowState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal flow state: %w", err)
	}
	if err := r.redisClient.Set(ctx, sessionKey(state.AdminID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set flow state: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, adminID int64) error {
	return r.redisClient.Del(ctx, sessionKey(adminID)).Err()
}

// 进程内会话最多保存的管理员数。
const memorySessionSize = 1024

type memorySessionRepository struct {
	cache *expirable.LRU[int64, model.FlowState]
}

// NewMemorySessionRepository 创建进程内的 SessionRepository，未配置 Redis 时使用。
func NewMemorySessionRepository(ttl time.Duration) SessionRepository {
	return &memorySessionRepository{cache: expirable.NewLRU[int64, model.FlowState](memorySessionSize, nil, ttl)}
}

func (r *memorySessionRepository) Get(_ context.Context, adminID int64) (*model.FlowState, error) {
	st, ok := r.cache.Get(adminID)
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (r *memorySessionRepository) Put(_ context.Context, state *model.FlowState) error {
	r.cache.Add(state.AdminID, *state)
	return nil
}

func (r *memorySessionRepository) Delete(_ context.Context, adminID int64) error {
	r.cache.Remove(adminID)
	return nil
}
