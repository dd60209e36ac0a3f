package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"file-share-bot/pkg/log"
	"file-share-bot/pkg/telegram"

	"github.com/gin-gonic/gin"
)

// UpdateDecoder 把 webhook 请求解析为平台更新，telegram.BotAPIClient 实现了该接口。
type UpdateDecoder interface {
	DecodeWebhook(r *http.Request) (telegram.Update, bool, error)
}

// UpdateHandler 处理一次平台更新。
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd telegram.Update)
}

// WebhookHandler 接收平台推送的更新。
type WebhookHandler struct {
	appCtx  context.Context
	secret  string
	decoder UpdateDecoder
	bot     UpdateHandler
}

// NewWebhookHandler 创建一个新的 WebhookHandler 实例。更新在 appCtx 上异步处理，
// 请求结束不会中断进行中的投递。
func NewWebhookHandler(appCtx context.Context, secret string, decoder UpdateDecoder, bot UpdateHandler) *WebhookHandler {
	return &WebhookHandler{appCtx: appCtx, secret: secret, decoder: decoder, bot: bot}
}

// Receive 校验路径中的密钥，立即应答平台，然后在后台处理更新。
func (h *WebhookHandler) Receive(c *gin.Context) {
	if subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(h.secret)) != 1 {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	upd, ok, err := h.decoder.DecodeWebhook(c.Request)
	if err != nil {
		log.Warnf("Receive: Invalid webhook payload: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}
	if ok {
		go h.bot.HandleUpdate(h.appCtx, upd)
	}
	c.Status(http.StatusOK)
}

// Healthz 用于存活探测。
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "ok", "data": nil})
}
