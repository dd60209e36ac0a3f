package database

import (
	"context"
	"time"

	"file-share-bot/internal/config"
	"file-share-bot/pkg/log"

	"github.com/go-redis/redis/v8"
)

// RDB 在未配置 Redis 时为 nil。
var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接；Addr 为空时跳过。
func InitRedis(cfg config.RedisConfig) {
	if cfg.Addr == "" {
		log.Info("Redis not configured, admin sessions are kept in memory")
		return
	}
	RDB = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := RDB.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
}
