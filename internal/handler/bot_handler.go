// Package handler 包含了机器人更新的路由以及 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"errors"

	"file-share-bot/internal/service"
	"file-share-bot/pkg/log"
	"file-share-bot/pkg/tasks"
	"file-share-bot/pkg/telegram"
)

// BotServices 是 BotHandler 依赖的全部业务服务。
type BotServices struct {
	Users     service.UserService
	Delivery  service.DeliveryService
	Ingest    service.IngestService
	Links     service.LinkFlowService
	Broadcast service.BroadcastService
	Admin     service.AdminService
}

// BotHandler 把平台推送的更新分发给各个服务。
type BotHandler struct {
	client        telegram.Client
	svc           BotServices
	isAdmin       func(userID int64) bool
	notAuthorized string
}

// NewBotHandler 创建一个新的 BotHandler 实例。
func NewBotHandler(client telegram.Client, svc BotServices, isAdmin func(int64) bool, notAuthorized string) *BotHandler {
	return &BotHandler{client: client, svc: svc, isAdmin: isAdmin, notAuthorized: notAuthorized}
}

// adminCommands 是只有管理员可以使用的命令。
var adminCommands = map[string]bool{
	"genlink":           true,
	"batch":             true,
	"cancel":            true,
	"broadcast":         true,
	"forward_broadcast": true,
	"settings":          true,
	"addfsub":           true,
	"delfsub":           true,
	"listfsub":          true,
	"setdeletetime":     true,
	"stats":             true,
}

// HandleUpdate 处理一次推送。ctx 应当是进程级的上下文：进程内广播会在它之上继续运行。
func (h *BotHandler) HandleUpdate(ctx context.Context, upd telegram.Update) {
	switch {
	case upd.ChannelPost != nil:
		if err := h.svc.Ingest.HandleChannelPost(ctx, upd.ChannelPost); err != nil {
			log.Errorw("failed to ingest channel post", "chat", upd.ChannelPost.ChatID, "message", upd.ChannelPost.ID, "error", err)
		}
	case upd.Callback != nil:
		h.handleCallback(ctx, upd.Callback)
	case upd.Message != nil:
		h.handleMessage(ctx, upd.Message)
	}
}

func (h *BotHandler) handleMessage(ctx context.Context, msg *telegram.Message) {
	if !msg.IsPrivate() || msg.From == nil {
		return
	}
	user := *msg.From
	cmd := msg.Command()

	if cmd == "start" {
		h.handleStart(ctx, user, msg)
		return
	}

	admin := h.isAdmin(user.ID)
	if adminCommands[cmd] {
		if !admin {
			h.reply(ctx, msg.ChatID, h.notAuthorized)
			return
		}
		h.handleAdminCommand(ctx, cmd, msg)
		return
	}
	if cmd != "" || !admin {
		return
	}

	if msg.IsForwarded() {
		handled, err := h.svc.Links.HandleForward(ctx, user.ID, msg)
		if err != nil {
			log.Errorw("link flow step failed", "admin", user.ID, "error", err)
		}
		if handled {
			return
		}
	}
	if msg.HasMedia {
		if err := h.svc.Ingest.HandleDirectUpload(ctx, msg); err != nil {
			log.Errorw("direct upload failed", "admin", user.ID, "error", err)
		}
	}
}

func (h *BotHandler) handleStart(ctx context.Context, user telegram.User, msg *telegram.Message) {
	if err := h.svc.Users.Register(ctx, user); err != nil {
		log.Errorw("failed to register user", "user", user.ID, "error", err)
	}
	payload := msg.CommandArgs()
	if payload == "" {
		if err := h.svc.Users.Welcome(ctx, user, msg.ChatID); err != nil {
			log.Errorw("failed to send welcome", "user", user.ID, "error", err)
		}
		return
	}
	if err := h.svc.Delivery.HandleStart(ctx, user, msg.ChatID, payload); err != nil {
		switch {
		case errors.Is(err, service.ErrNotSubscribed):
			log.Infof("user %d asked to join channels before receiving files", user.ID)
		default:
			log.Warnw("start request failed", "user", user.ID, "error", err)
		}
	}
}

func (h *BotHandler) handleAdminCommand(ctx context.Context, cmd string, msg *telegram.Message) {
	adminID := msg.From.ID
	var err error
	switch cmd {
	case "genlink":
		err = h.svc.Links.StartGenLink(ctx, adminID, msg.ChatID)
	case "batch":
		err = h.svc.Links.StartBatch(ctx, adminID, msg.ChatID)
	case "cancel":
		var cancelled bool
		if cancelled, err = h.svc.Links.Cancel(ctx, adminID); err == nil {
			if cancelled {
				h.reply(ctx, msg.ChatID, "❌ Operation cancelled.")
			} else {
				h.reply(ctx, msg.ChatID, "ℹ️ Nothing to cancel.")
			}
		}
	case "broadcast":
		_, err = h.svc.Broadcast.Start(ctx, msg.ChatID, adminID, tasks.BroadcastCopy, msg.ReplyTo)
	case "forward_broadcast":
		_, err = h.svc.Broadcast.Start(ctx, msg.ChatID, adminID, tasks.BroadcastForward, msg.ReplyTo)
	case "settings":
		err = h.sendPanel(ctx, msg.ChatID)
	case "addfsub":
		h.addForceSub(ctx, msg)
	case "delfsub":
		h.removeForceSub(ctx, msg)
	case "listfsub":
		h.listForceSub(ctx, msg)
	case "setdeletetime":
		h.setDeleteTime(ctx, msg)
	case "stats":
		h.sendStats(ctx, msg.ChatID)
	}
	if err != nil && !errors.Is(err, service.ErrInvalidInput) {
		log.Errorw("admin command failed", "command", cmd, "admin", adminID, "error", err)
	}
}

func (h *BotHandler) handleCallback(ctx context.Context, cb *telegram.Callback) {
	handled, err := h.svc.Users.HandleCallback(ctx, cb)
	if err != nil {
		log.Errorw("callback failed", "data", cb.Data, "user", cb.From.ID, "error", err)
	}
	if handled {
		return
	}
	if !h.isAdmin(cb.From.ID) {
		if err := h.client.AnswerCallback(ctx, cb.ID, h.notAuthorized); err != nil {
			log.Warnw("failed to answer callback", "callback", cb.ID, "error", err)
		}
		return
	}
	h.handlePanelCallback(ctx, cb)
}

func (h *BotHandler) reply(ctx context.Context, chatID int64, text string) {
	if text == "" {
		return
	}
	if _, err := h.client.SendText(ctx, telegram.TextMessage{ChatID: chatID, Text: text, DisablePreview: true}); err != nil {
		log.Errorw("failed to send reply", "chat", chatID, "error", err)
	}
}
