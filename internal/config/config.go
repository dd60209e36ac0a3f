// Package config 负责加载和管理机器人的配置。
//
// 配置来源按优先级从低到高：编译期默认值、config.yaml、.env 文件、环境变量。
// 加载完成后即为只读的进程级状态。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储加载后的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Messages MessagesConfig `mapstructure:"messages"`
	Session  SessionConfig  `mapstructure:"session"`
}

// ServerConfig 存储 HTTP 服务相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// DatabaseConfig 存储所有持久化后端的配置。
type DatabaseConfig struct {
	// Driver 取值 mysql、sqlite 或 mongo。
	Driver string       `mapstructure:"driver"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// MongoConfig 存储 MongoDB 的配置。
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时会话保存在进程内存中。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时广播在进程内执行。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// JWTConfig 存储管理 API 的 JWT 配置。
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	AccessTokenHours int    `mapstructure:"access_token_expire_hours"`
}

// TelegramConfig 存储机器人与存储频道相关的配置。
type TelegramConfig struct {
	BotToken      string `mapstructure:"bot_token"`
	Debug         bool   `mapstructure:"debug"`
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`

	// ChannelID 是短视频存储频道（自动删除）。
	ChannelID int64 `mapstructure:"channel_id"`
	// MovieChannelID 是电影存储频道（永久），为 0 表示未启用。
	MovieChannelID int64 `mapstructure:"movie_channel_id"`

	OwnerID int64   `mapstructure:"owner_id"`
	Admins  []int64 `mapstructure:"admins"`

	ForceSubChannels []int64 `mapstructure:"force_sub_channels"`

	ProtectContent       bool `mapstructure:"protect_content"`
	DisableChannelButton bool `mapstructure:"disable_channel_button"`

	// AutoDeleteTime 以秒为单位，0 表示关闭自动删除。
	AutoDeleteTime int `mapstructure:"auto_delete_time"`

	BatchLimit      int           `mapstructure:"batch_limit"`
	BatchPacing     time.Duration `mapstructure:"batch_pacing"`
	BroadcastPacing time.Duration `mapstructure:"broadcast_pacing"`
}

// MessagesConfig 存储面向用户的文案模板。
type MessagesConfig struct {
	Start             string `mapstructure:"start"`
	StartPic          string `mapstructure:"start_pic"`
	ForceSub          string `mapstructure:"force_sub"`
	AutoDelete        string `mapstructure:"auto_delete"`
	AutoDeleteSuccess string `mapstructure:"auto_delete_success"`
	CustomCaption     string `mapstructure:"custom_caption"`
	UserReply         string `mapstructure:"user_reply"`
}

// SessionConfig 存储管理员多步操作的会话配置。
type SessionConfig struct {
	FlowTTL time.Duration `mapstructure:"flow_ttl"`
}

// IsAdmin 判断 userID 是否为管理员（owner 永远是管理员）。
func (t TelegramConfig) IsAdmin(userID int64) bool {
	if userID == 0 {
		return false
	}
	if userID == t.OwnerID {
		return true
	}
	for _, id := range t.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// MovieEnabled 判断电影频道是否启用。
func (t TelegramConfig) MovieEnabled() bool {
	return t.MovieChannelID != 0
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.sqlite.path", "filesharebot.db")
	v.SetDefault("database.mongo.database", "filesharexbot")

	v.SetDefault("kafka.topic", "broadcast-tasks")
	v.SetDefault("kafka.group_id", "file-share-bot-broadcast")

	v.SetDefault("jwt.access_token_expire_hours", 24)

	v.SetDefault("telegram.auto_delete_time", 25200)
	v.SetDefault("telegram.batch_limit", 100)
	v.SetDefault("telegram.batch_pacing", time.Second)
	v.SetDefault("telegram.broadcast_pacing", 100*time.Millisecond)

	v.SetDefault("messages.start", "Hello {first}\n\nI can store private files in a specified channel and other users can access them from a special link.")
	v.SetDefault("messages.force_sub", "Hello {first}\n\n🔒 <b>You must join our channel(s) to use this bot!</b>\n\n📢 Please join the channel(s) below and try again:")
	v.SetDefault("messages.auto_delete", "⚠️ <b>This file will be automatically deleted in {time}.</b>\n\n📥 Please save it now!")
	v.SetDefault("messages.auto_delete_success", "✅ File deleted successfully after the specified time.")
	v.SetDefault("messages.user_reply", "❌ You are not authorized to use this command.")

	v.SetDefault("session.flow_ttl", 10*time.Minute)
}

// Load 读取配置文件与环境变量。configPath 不存在时只使用默认值与环境变量。
func Load(configPath string) (Config, error) {
	// .env 是可选的
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return c, nil
}

// bindLegacyEnv 兼容旧部署中使用的扁平环境变量名。
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"telegram.bot_token":              "BOT_TOKEN",
		"telegram.channel_id":             "CHANNEL_ID",
		"telegram.movie_channel_id":       "MOVIE_CHANNEL_ID",
		"telegram.owner_id":               "OWNER_ID",
		"telegram.admins":                 "ADMINS",
		"telegram.force_sub_channels":     "FORCE_SUB_CHANNELS",
		"telegram.protect_content":        "PROTECT_CONTENT",
		"telegram.auto_delete_time":       "AUTO_DELETE_TIME",
		"telegram.disable_channel_button": "DISABLE_CHANNEL_BUTTON",
		"database.mongo.uri":              "DATABASE_URL",
		"database.mongo.database":         "DATABASE_NAME",
		"messages.start":                  "START_MESSAGE",
		"messages.start_pic":              "START_PIC",
		"messages.force_sub":              "FORCE_SUB_MESSAGE",
		"messages.auto_delete":            "AUTO_DELETE_MSG",
		"messages.auto_delete_success":    "AUTO_DEL_SUCCESS_MSG",
		"messages.custom_caption":         "CUSTOM_CAPTION",
		"messages.user_reply":             "USER_REPLY_TEXT",
	}
	for key, env := range legacy {
		if val, ok := os.LookupEnv(env); ok {
			v.Set(key, normaliseList(key, val))
		}
	}
}

// normaliseList 把 "1 2" 或 "1,2" 形式的 ID 列表转换为切片，并剔除占位值 0。
func normaliseList(key, val string) interface{} {
	if key != "telegram.admins" && key != "telegram.force_sub_channels" {
		return val
	}
	fields := strings.FieldsFunc(val, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" && f != "0" {
			out = append(out, f)
		}
	}
	return out
}

// Validate 检查启动所必需的配置项。
func (c Config) Validate() error {
	var errs []error
	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("telegram.bot_token is required"))
	}
	if c.Telegram.ChannelID == 0 {
		errs = append(errs, errors.New("telegram.channel_id is required"))
	}
	if c.Telegram.AutoDeleteTime < 0 {
		errs = append(errs, errors.New("telegram.auto_delete_time must be >= 0"))
	}
	if c.Telegram.BatchLimit <= 0 {
		errs = append(errs, errors.New("telegram.batch_limit must be positive"))
	}
	switch c.Database.Driver {
	case "mysql", "sqlite", "mongo":
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// Init 加载配置到全局变量 Conf，失败时 panic。
func Init(configPath string) {
	c, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = c
}
