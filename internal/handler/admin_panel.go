package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"file-share-bot/internal/service"
	"file-share-bot/pkg/log"
	"file-share-bot/pkg/telegram"
)

// 管理面板的回调数据。
const (
	callbackManageFsub       = "manage_fsub"
	callbackChangeDeleteTime = "change_delete_time"
	callbackViewStats        = "view_stats"
	callbackBackToSettings   = "back_to_settings"
	callbackClosePanel       = "close_panel"
)

func panelKeyboard() telegram.Keyboard {
	return telegram.Keyboard{
		telegram.Row(telegram.Button{Text: "📢 Manage Force-Sub Channels", Data: callbackManageFsub}),
		telegram.Row(telegram.Button{Text: "⏰ Change Auto-Delete Time", Data: callbackChangeDeleteTime}),
		telegram.Row(telegram.Button{Text: "📊 View Stats", Data: callbackViewStats}),
		telegram.Row(telegram.Button{Text: "❌ Close", Data: callbackClosePanel}),
	}
}

func backToSettings() telegram.Keyboard {
	return telegram.Keyboard{telegram.Row(telegram.Button{Text: "🔙 Back to Settings", Data: callbackBackToSettings})}
}

func (h *BotHandler) panelText(ctx context.Context) (string, error) {
	stats, err := h.svc.Admin.Stats(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("⚙️ <b>Admin Panel</b>\n\n📊 <b>Current Settings:</b>\n\n"+
		"🔔 Force Subscribe Channels: %d\n⏰ Auto-Delete Time: %s\n\nSelect an option below:",
		stats.ForceSubChannels, stats.AutoDeleteReadable), nil
}

func (h *BotHandler) sendPanel(ctx context.Context, chatID int64) error {
	text, err := h.panelText(ctx)
	if err != nil {
		h.reply(ctx, chatID, "❌ Failed to load settings.")
		return err
	}
	_, err = h.client.SendText(ctx, telegram.TextMessage{ChatID: chatID, Text: text, Keyboard: panelKeyboard()})
	return err
}

func (h *BotHandler) handlePanelCallback(ctx context.Context, cb *telegram.Callback) {
	if err := h.client.AnswerCallback(ctx, cb.ID, ""); err != nil {
		log.Warnw("failed to answer callback", "callback", cb.ID, "error", err)
	}
	if cb.Message == nil {
		return
	}
	chatID, messageID := cb.Message.ChatID, cb.Message.ID

	var text string
	var kb telegram.Keyboard
	var err error
	switch cb.Data {
	case callbackManageFsub:
		text, err = h.manageForceSubText(ctx)
		kb = backToSettings()
	case callbackChangeDeleteTime:
		text, err = h.deleteTimeText(ctx)
		kb = backToSettings()
	case callbackViewStats:
		text, err = h.statsText(ctx)
		kb = backToSettings()
	case callbackBackToSettings:
		text, err = h.panelText(ctx)
		kb = panelKeyboard()
	case callbackClosePanel:
		if err := h.client.DeleteMessage(ctx, chatID, messageID); err != nil {
			log.Warnw("failed to close admin panel", "chat", chatID, "error", err)
		}
		return
	default:
		return
	}
	if err != nil {
		log.Errorw("admin panel render failed", "data", cb.Data, "error", err)
		text, kb = "❌ Failed to load settings.", backToSettings()
	}
	if err := h.client.EditText(ctx, chatID, messageID, text, kb); err != nil {
		log.Warnw("failed to update admin panel", "chat", chatID, "error", err)
	}
}

func (h *BotHandler) manageForceSubText(ctx context.Context) (string, error) {
	channels, err := h.svc.Admin.ForceSubChannels(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("📢 <b>Manage Force Subscribe Channels</b>\n\n")
	if len(channels) == 0 {
		b.WriteString("No force subscribe channels set.\n")
	} else {
		b.WriteString("<b>Current Channels:</b>\n")
		for i, ch := range channels {
			if ch.Title != "" {
				fmt.Fprintf(&b, "%d. %s (<code>%d</code>)\n", i+1, telegram.EscapeHTML(ch.Title), ch.ID)
			} else {
				fmt.Fprintf(&b, "%d. Channel ID: <code>%d</code>\n", i+1, ch.ID)
			}
		}
	}
	b.WriteString("\n<b>Commands:</b>\n")
	b.WriteString("• <code>/addfsub &lt;channel_id&gt;</code> - Add channel\n")
	b.WriteString("• <code>/delfsub &lt;channel_id&gt;</code> - Remove channel\n")
	b.WriteString("• <code>/listfsub</code> - List all channels")
	return b.String(), nil
}

func (h *BotHandler) deleteTimeText(ctx context.Context) (string, error) {
	secs, err := h.svc.Admin.AutoDeleteTime(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("⏰ <b>Change Auto-Delete Time</b>\n\nCurrent: %s\n\n"+
		"<b>Command:</b>\n<code>/setdeletetime &lt;seconds&gt;</code>\n\n"+
		"<b>Examples:</b>\n"+
		"• <code>/setdeletetime 3600</code> (1 hour)\n"+
		"• <code>/setdeletetime 7200</code> (2 hours)\n"+
		"• <code>/setdeletetime 25200</code> (7 hours)\n"+
		"• <code>/setdeletetime 0</code> (disable auto-delete)", service.HumanDuration(secs)), nil
}

func (h *BotHandler) statsText(ctx context.Context) (string, error) {
	stats, err := h.svc.Admin.Stats(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("📊 <b>Bot Statistics</b>\n\n👥 Total Users: %d\n📦 Total Files: %d\n📢 Force-Sub Channels: %d\n⏰ Auto-Delete Time: %s",
		stats.Users, stats.Files, stats.ForceSubChannels, stats.AutoDeleteReadable), nil
}

func (h *BotHandler) sendStats(ctx context.Context, chatID int64) {
	text, err := h.statsText(ctx)
	if err != nil {
		log.Errorw("failed to load stats", "error", err)
		text = "❌ Failed to load statistics."
	}
	h.reply(ctx, chatID, text)
}

// parseChannelArg 解析命令的频道 ID 参数；失败时已向管理员回复用法。
func (h *BotHandler) parseChannelArg(ctx context.Context, msg *telegram.Message, cmd string) (int64, bool) {
	arg, _, _ := strings.Cut(msg.CommandArgs(), " ")
	if arg == "" {
		h.reply(ctx, msg.ChatID, fmt.Sprintf("❌ <b>Usage:</b> <code>/%s &lt;channel_id&gt;</code>\n\nExample: <code>/%s -1001234567890</code>", cmd, cmd))
		return 0, false
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id == 0 {
		h.reply(ctx, msg.ChatID, "❌ Invalid channel ID! Must be a number.")
		return 0, false
	}
	return id, true
}

func (h *BotHandler) addForceSub(ctx context.Context, msg *telegram.Message) {
	id, ok := h.parseChannelArg(ctx, msg, "addfsub")
	if !ok {
		return
	}
	detail, added, err := h.svc.Admin.AddForceSubChannel(ctx, id)
	title := telegram.EscapeHTML(detail.Title)
	switch {
	case errors.Is(err, service.ErrBotNotAdmin):
		h.reply(ctx, msg.ChatID, fmt.Sprintf("❌ I'm not an admin in <b>%s</b>!\nPlease make me admin first.", title))
	case err != nil:
		log.Errorw("failed to add force-sub channel", "channel", id, "error", err)
		h.reply(ctx, msg.ChatID, "❌ Error accessing channel. Make sure the ID is correct and the bot is a member.")
	case !added:
		h.reply(ctx, msg.ChatID, "⚠️ This channel is already in the list!")
	default:
		log.Infof("admin %d added force-sub channel: %d", msg.From.ID, id)
		h.reply(ctx, msg.ChatID, fmt.Sprintf("✅ Added <b>%s</b> to force subscribe!\nChannel ID: <code>%d</code>", title, id))
	}
}

func (h *BotHandler) removeForceSub(ctx context.Context, msg *telegram.Message) {
	id, ok := h.parseChannelArg(ctx, msg, "delfsub")
	if !ok {
		return
	}
	removed, err := h.svc.Admin.RemoveForceSubChannel(ctx, id)
	switch {
	case err != nil:
		log.Errorw("failed to remove force-sub channel", "channel", id, "error", err)
		h.reply(ctx, msg.ChatID, "❌ Failed to update force subscribe channels.")
	case !removed:
		h.reply(ctx, msg.ChatID, "⚠️ This channel is not in the list!")
	default:
		log.Infof("admin %d removed force-sub channel: %d", msg.From.ID, id)
		h.reply(ctx, msg.ChatID, fmt.Sprintf("✅ Removed channel <code>%d</code> from force subscribe!", id))
	}
}

func (h *BotHandler) listForceSub(ctx context.Context, msg *telegram.Message) {
	channels, err := h.svc.Admin.ForceSubChannels(ctx)
	if err != nil {
		log.Errorw("failed to list force-sub channels", "error", err)
		h.reply(ctx, msg.ChatID, "❌ Failed to load force subscribe channels.")
		return
	}
	if len(channels) == 0 {
		h.reply(ctx, msg.ChatID, "📢 No force subscribe channels configured.")
		return
	}
	var b strings.Builder
	b.WriteString("📢 <b>Force Subscribe Channels:</b>\n\n")
	for i, ch := range channels {
		if ch.Title == "" {
			fmt.Fprintf(&b, "%d. Channel ID: <code>%d</code>\n   └ Error: Unable to fetch info\n\n", i+1, ch.ID)
			continue
		}
		link := ch.InviteLink
		if link == "" {
			link = "N/A"
		}
		fmt.Fprintf(&b, "%d. <b>%s</b>\n   └ ID: <code>%d</code>\n   └ Link: %s\n\n", i+1, telegram.EscapeHTML(ch.Title), ch.ID, link)
	}
	h.reply(ctx, msg.ChatID, b.String())
}

func (h *BotHandler) setDeleteTime(ctx context.Context, msg *telegram.Message) {
	arg, _, _ := strings.Cut(msg.CommandArgs(), " ")
	if arg == "" {
		h.reply(ctx, msg.ChatID, "❌ <b>Usage:</b> <code>/setdeletetime &lt;seconds&gt;</code>\n\nExample: <code>/setdeletetime 7200</code> (2 hours)")
		return
	}
	secs, err := strconv.Atoi(arg)
	if err != nil {
		h.reply(ctx, msg.ChatID, "❌ Invalid time! Must be a number in seconds.")
		return
	}
	if secs < 0 {
		h.reply(ctx, msg.ChatID, "❌ Time must be 0 or positive!")
		return
	}
	if err := h.svc.Admin.SetAutoDeleteTime(ctx, secs); err != nil {
		log.Errorw("failed to set auto-delete time", "seconds", secs, "error", err)
		h.reply(ctx, msg.ChatID, "❌ Failed to save the auto-delete time.")
		return
	}
	log.Infof("admin %d changed auto-delete time to %ds", msg.From.ID, secs)
	if secs == 0 {
		h.reply(ctx, msg.ChatID, "✅ Auto-delete disabled!")
		return
	}
	h.reply(ctx, msg.ChatID, fmt.Sprintf("✅ Auto-delete time set to <b>%s</b>!\n\n"+
		"⚠️ This only affects SHORT category files.\nMovie files remain permanent.", service.HumanDuration(secs)))
}
