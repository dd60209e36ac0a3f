package database

import (
	"fmt"
	"time"

	"file-share-bot/internal/config"
	"file-share-bot/internal/model"
	"file-share-bot/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// dialector 根据驱动名返回 GORM 方言。
func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql":
		if cfg.MySQL.DSN == "" {
			return nil, fmt.Errorf("database.mysql.dsn is required for the mysql driver")
		}
		return mysql.Open(cfg.MySQL.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.SQLite.Path), nil
	}
	return nil, fmt.Errorf("driver %q is not a SQL driver", cfg.Driver)
}

// OpenSQL 打开 SQL 数据库并迁移表结构。
func OpenSQL(cfg config.DatabaseConfig) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// SQLite 同一时间只允许一个写入者
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
		sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
		sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(&model.FileRecord{}, &model.BotUser{}, &model.Setting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return db, nil
}

// InitSQL 初始化全局 SQL 连接，失败时退出进程。
func InitSQL(cfg config.DatabaseConfig) {
	db, err := OpenSQL(cfg)
	if err != nil {
		log.Fatal("failed to open SQL store", err)
	}
	DB = db
	log.Infof("%s database connected successfully", cfg.Driver)
}
