// Package database 持有进程级的存储连接：SQL（MySQL/SQLite）、MongoDB 与 Redis。
package database

import (
	"context"
	"fmt"
	"time"

	"file-share-bot/internal/config"
	"file-share-bot/pkg/log"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	Mongo   *mongo.Client
	MongoDB *mongo.Database
)

// OpenMongo 连接 MongoDB 并确认可达。
func OpenMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("database.mongo.uri is required for the mongo driver")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// InitMongo 初始化全局 MongoDB 连接，失败时退出进程。
func InitMongo(cfg config.MongoConfig) {
	client, err := OpenMongo(context.Background(), cfg)
	if err != nil {
		log.Fatal("failed to open mongo store", err)
	}
	Mongo = client
	MongoDB = client.Database(cfg.Database)
	log.Infof("MongoDB connected successfully, database %s", cfg.Database)
}

// Close 关闭所有已打开的连接。
func Close() {
	if Mongo != nil {
		if err := Mongo.Disconnect(context.Background()); err != nil {
			log.Error("failed to disconnect mongo", err)
		}
	}
	if DB != nil {
		if sqlDB, err := DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if RDB != nil {
		_ = RDB.Close()
	}
}
