package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPIClient 是基于 go-telegram-bot-api 的 Client 实现。
type BotAPIClient struct {
	api *tgbotapi.BotAPI
}

var _ Client = (*BotAPIClient)(nil)

// NewBotAPIClient 使用 bot token 登录并返回客户端。
func NewBotAPIClient(token string, debug bool) (*BotAPIClient, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}
	api.Debug = debug
	return &BotAPIClient{api: api}, nil
}

func (c *BotAPIClient) Username() string { return c.api.Self.UserName }

func (c *BotAPIClient) SelfID() int64 { return c.api.Self.ID }

func (c *BotAPIClient) SendText(ctx context.Context, msg TextMessage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cfg := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	if !msg.DisableParseMode {
		cfg.ParseMode = tgbotapi.ModeHTML
	}
	cfg.DisableWebPagePreview = msg.DisablePreview
	cfg.ReplyToMessageID = msg.ReplyTo
	if kb := toMarkup(msg.Keyboard); kb != nil {
		cfg.ReplyMarkup = *kb
	}
	sent, err := c.api.Send(cfg)
	if err != nil {
		return 0, translate(err)
	}
	return sent.MessageID, nil
}

func (c *BotAPIClient) SendPhoto(ctx context.Context, msg PhotoMessage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var file tgbotapi.RequestFileData = tgbotapi.FileID(msg.Photo)
	if strings.HasPrefix(msg.Photo, "http://") || strings.HasPrefix(msg.Photo, "https://") {
		file = tgbotapi.FileURL(msg.Photo)
	}
	cfg := tgbotapi.NewPhoto(msg.ChatID, file)
	cfg.Caption = msg.Caption
	cfg.ParseMode = tgbotapi.ModeHTML
	if kb := toMarkup(msg.Keyboard); kb != nil {
		cfg.ReplyMarkup = *kb
	}
	sent, err := c.api.Send(cfg)
	if err != nil {
		return 0, translate(err)
	}
	return sent.MessageID, nil
}

func (c *BotAPIClient) EditText(ctx context.Context, chatID int64, messageID int, text string, keyboard Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	cfg.ParseMode = tgbotapi.ModeHTML
	cfg.DisableWebPagePreview = true
	cfg.ReplyMarkup = toMarkup(keyboard)
	_, err := c.api.Request(cfg)
	return translate(err)
}

func (c *BotAPIClient) CopyMessage(ctx context.Context, req CopyRequest) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	params, err := copyMessageParams(req)
	if err != nil {
		return 0, err
	}
	// CopyMessageConfig 没有 protect_content 字段，这里直接发原始参数。
	resp, err := c.api.MakeRequest("copyMessage", params)
	if err != nil {
		return 0, translate(err)
	}
	var id tgbotapi.MessageID
	if err := json.Unmarshal(resp.Result, &id); err != nil {
		return 0, fmt.Errorf("decode copyMessage result: %w", err)
	}
	return id.MessageID, nil
}

func copyMessageParams(req CopyRequest) (tgbotapi.Params, error) {
	params := make(tgbotapi.Params)
	params.AddNonZero64("chat_id", req.ToChatID)
	params.AddNonZero64("from_chat_id", req.FromChatID)
	params.AddNonZero("message_id", req.MessageID)
	if req.Caption != nil {
		// 空串也要发送，用来清掉原说明。
		params["caption"] = *req.Caption
		params["parse_mode"] = tgbotapi.ModeHTML
	}
	params.AddBool("protect_content", req.ProtectContent)
	if kb := toMarkup(req.Keyboard); kb != nil {
		if err := params.AddInterface("reply_markup", kb); err != nil {
			return nil, fmt.Errorf("encode reply markup: %w", err)
		}
	}
	return params, nil
}

func (c *BotAPIClient) ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sent, err := c.api.Send(tgbotapi.NewForward(toChatID, fromChatID, messageID))
	if err != nil {
		return 0, translate(err)
	}
	return sent.MessageID, nil
}

func (c *BotAPIClient) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return translate(err)
}

func (c *BotAPIClient) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.NewCallback(callbackID, text))
	return translate(err)
}

func (c *BotAPIClient) GetChat(ctx context.Context, chatID int64) (ChatInfo, error) {
	if err := ctx.Err(); err != nil {
		return ChatInfo{}, err
	}
	chat, err := c.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		return ChatInfo{}, translate(err)
	}
	return ChatInfo{ID: chat.ID, Title: chat.Title, InviteLink: chat.InviteLink}, nil
}

func (c *BotAPIClient) GetMemberStatus(ctx context.Context, chatID, userID int64) (MemberStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return "", translate(err)
	}
	return MemberStatus(member.Status), nil
}

func (c *BotAPIClient) ExportInviteLink(ctx context.Context, chatID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	link, err := c.api.GetInviteLink(tgbotapi.ChatInviteLinkConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		return "", translate(err)
	}
	return link, nil
}

// Poll 以长轮询方式接收更新，ctx 结束后停止。
func (c *BotAPIClient) Poll(ctx context.Context, handle func(context.Context, Update)) {
	// 长轮询与 webhook 互斥，先清掉可能残留的 webhook。
	_, _ = c.api.Request(tgbotapi.DeleteWebhookConfig{})
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			if converted, ok := FromBotAPI(upd); ok {
				go handle(ctx, converted)
			}
		}
	}
}

// SetWebhook 向平台注册 webhook 地址。
func (c *BotAPIClient) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	_, err = c.api.Request(wh)
	return translate(err)
}

// DecodeWebhook 从 webhook 请求中解析出更新。
func (c *BotAPIClient) DecodeWebhook(r *http.Request) (Update, bool, error) {
	upd, err := c.api.HandleUpdate(r)
	if err != nil {
		return Update{}, false, err
	}
	converted, ok := FromBotAPI(*upd)
	return converted, ok, nil
}

func toMarkup(kb Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// translate 将 Bot API 的错误映射为本包的错误类型。
func translate(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	msg := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.RetryAfter > 0:
		return &RateLimitError{RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second}
	case apiErr.Code == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: time.Second}
	case strings.Contains(msg, "deactivated"):
		return fmt.Errorf("%w: %s", ErrUserDeactivated, apiErr.Message)
	case strings.Contains(msg, "blocked by the user"):
		return fmt.Errorf("%w: %s", ErrBlocked, apiErr.Message)
	case strings.Contains(msg, "user not found"),
		strings.Contains(msg, "participant_id_invalid"),
		strings.Contains(msg, "user_not_participant"):
		return fmt.Errorf("%w: %s", ErrNotParticipant, apiErr.Message)
	}
	return err
}
