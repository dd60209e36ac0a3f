// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"file-share-bot/internal/config"
	"file-share-bot/internal/handler"
	"file-share-bot/internal/repository"
	"file-share-bot/internal/service"
	"file-share-bot/pkg/database"
	"file-share-bot/pkg/kafka"
	"file-share-bot/pkg/lifecycle"
	"file-share-bot/pkg/log"
	"file-share-bot/pkg/telegram"
	"file-share-bot/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "filesharebot",
	Short: "Telegram file sharing bot",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot and its HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs/config.yaml", "path to config.yaml")
	rootCmd.AddCommand(serveCmd, linkCmd, tokenCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// stores 是按配置选择的持久化实现。
type stores struct {
	files    repository.FileRepository
	users    repository.UserRepository
	settings repository.SettingRepository
}

func openStores(cfg config.DatabaseConfig) stores {
	if cfg.Driver == "mongo" {
		database.InitMongo(cfg.Mongo)
		return stores{
			files:    repository.NewMongoFileRepository(database.MongoDB),
			users:    repository.NewMongoUserRepository(database.MongoDB),
			settings: repository.NewMongoSettingRepository(database.MongoDB),
		}
	}
	database.InitSQL(cfg)
	return stores{
		files:    repository.NewFileRepository(database.DB),
		users:    repository.NewUserRepository(database.DB),
		settings: repository.NewSettingRepository(database.DB),
	}
}

func serve() error {
	// 1. 初始化配置
	config.Init(configPath)
	cfg := config.Conf
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	appCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. 初始化存储与 Redis
	st := openStores(cfg.Database)
	defer database.Close()
	database.InitRedis(cfg.Database.Redis)

	var sessions repository.SessionRepository
	if database.RDB != nil {
		sessions = repository.NewSessionRepository(database.RDB, cfg.Session.FlowTTL)
	} else {
		sessions = repository.NewMemorySessionRepository(cfg.Session.FlowTTL)
	}

	// 4. 连接平台并确认短视频频道可访问
	client, err := telegram.NewBotAPIClient(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		log.Fatal("无法连接 Telegram Bot API", err)
	}
	log.Infof("机器人 @%s 已登录", client.Username())
	if _, err := client.GetChat(appCtx, cfg.Telegram.ChannelID); err != nil {
		log.Fatalf("无法访问存储频道 %d，请确认机器人是该频道的管理员: %v", cfg.Telegram.ChannelID, err)
	}
	if cfg.Telegram.MovieEnabled() {
		if _, err := client.GetChat(appCtx, cfg.Telegram.MovieChannelID); err != nil {
			log.Warnf("无法访问电影频道 %d: %v", cfg.Telegram.MovieChannelID, err)
		}
	}

	// 5. 初始化 Service (依赖注入)
	texts := service.Texts{
		Start:             cfg.Messages.Start,
		StartPic:          cfg.Messages.StartPic,
		ForceSub:          cfg.Messages.ForceSub,
		AutoDelete:        cfg.Messages.AutoDelete,
		AutoDeleteSuccess: cfg.Messages.AutoDeleteSuccess,
		CustomCaption:     cfg.Messages.CustomCaption,
		NotAuthorized:     cfg.Messages.UserReply,
	}
	channels := service.Channels{Short: cfg.Telegram.ChannelID, Movie: cfg.Telegram.MovieChannelID}

	scheduler := lifecycle.NewScheduler(service.NewChatDeleter(client), cfg.Messages.AutoDeleteSuccess)
	defer scheduler.Stop()

	settingsService := service.NewSettingsService(st.settings, cfg.Telegram.AutoDeleteTime)
	gate := service.NewSubscriptionService(client, settingsService, cfg.Telegram.ForceSubChannels)

	var publisher service.BroadcastPublisher
	var producer *kafka.Producer
	if kafka.Enabled(cfg.Kafka) {
		producer = kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		publisher = producer
	}
	broadcastService := service.NewBroadcastService(client, st.users, publisher, cfg.Telegram.BroadcastPacing, nil)

	svc := handler.BotServices{
		Users: service.NewUserService(client, st.users, texts),
		Delivery: service.NewDeliveryService(client, st.files, gate, settingsService, scheduler, service.DeliveryOptions{
			Channels:       channels,
			ProtectContent: cfg.Telegram.ProtectContent,
			BatchLimit:     cfg.Telegram.BatchLimit,
			BatchPacing:    cfg.Telegram.BatchPacing,
			Texts:          texts,
		}, nil),
		Ingest: service.NewIngestService(client, st.files, service.IngestOptions{
			Channels:             channels,
			DisableChannelButton: cfg.Telegram.DisableChannelButton,
		}, nil),
		Links: service.NewLinkFlowService(client, st.files, sessions, service.LinkFlowOptions{
			Channels:             channels,
			DisableChannelButton: cfg.Telegram.DisableChannelButton,
			BatchLimit:           cfg.Telegram.BatchLimit,
		}),
		Broadcast: broadcastService,
		Admin:     service.NewAdminService(client, st.files, st.users, settingsService, cfg.Telegram.BatchLimit),
	}
	bot := handler.NewBotHandler(client, svc, cfg.Telegram.IsAdmin, cfg.Messages.UserReply)

	// 6. 启动后台 Kafka 消费者
	if producer != nil {
		go kafka.StartConsumer(appCtx, cfg.Kafka, database.RDB, broadcastService)
	}

	// 7. 选择接收更新的方式：配置了 webhook 地址时使用 webhook，否则长轮询
	opts := handler.RouterOptions{IsAdmin: cfg.Telegram.IsAdmin}
	if cfg.JWT.Secret != "" {
		opts.JWT = token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenHours)
		opts.Admin = handler.NewAdminHandler(svc.Admin)
	}
	if cfg.Telegram.WebhookURL != "" {
		if cfg.Telegram.WebhookSecret == "" {
			return errors.New("telegram.webhook_secret is required when webhook_url is set")
		}
		url := fmt.Sprintf("%s/telegram/webhook/%s", cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret)
		if err := client.SetWebhook(url); err != nil {
			log.Fatal("注册 webhook 失败", err)
		}
		opts.Webhook = handler.NewWebhookHandler(appCtx, cfg.Telegram.WebhookSecret, client, bot)
		log.Info("已注册 webhook，等待平台推送")
	} else {
		go client.Poll(appCtx, bot.HandleUpdate)
		log.Info("已开始长轮询接收更新")
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(opts)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	// 停止长轮询、Kafka 消费者与进程内广播；未触发的自动删除随调度器一起丢弃
	stop()
	log.Infof("服务已优雅关闭，丢弃 %d 个待执行的自动删除", scheduler.Pending())
	return nil
}
