package handler

import (
	"file-share-bot/internal/middleware"
	"file-share-bot/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions 汇总了 HTTP 路由所需的处理器。Webhook 为 nil 时不注册 webhook 路由，
// JWT 为 nil 时不开放管理 API。
type RouterOptions struct {
	Webhook *WebhookHandler
	Admin   *AdminHandler
	JWT     *token.JWTManager
	IsAdmin func(userID int64) bool
}

// NewRouter 创建路由引擎并注册全部路由。
func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/healthz", Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.Webhook != nil {
		r.POST("/telegram/webhook/:secret", opts.Webhook.Receive)
	}

	if opts.JWT != nil && opts.Admin != nil {
		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := r.Group("/api/v1/admin")
		admin.Use(middleware.AuthMiddleware(opts.JWT), middleware.AdminAuthMiddleware(opts.IsAdmin))
		{
			admin.GET("/stats", opts.Admin.GetStats)
			admin.GET("/settings", opts.Admin.GetSettings)
			admin.POST("/force-sub-channels", opts.Admin.AddForceSubChannel)
			admin.DELETE("/force-sub-channels/:id", opts.Admin.RemoveForceSubChannel)
			admin.PUT("/auto-delete-time", opts.Admin.SetAutoDeleteTime)
			admin.POST("/links", opts.Admin.CreateLink)
			admin.GET("/files/:id", opts.Admin.GetFile)
			admin.DELETE("/files/:id", opts.Admin.DeleteFile)
		}
	}
	return r
}
