package service

import (
	"context"

	"file-share-bot/pkg/lifecycle"
	"file-share-bot/pkg/telegram"
)

// chatDeleter 让 lifecycle.Scheduler 通过机器人客户端删除消息并发送通知。
type chatDeleter struct {
	client telegram.Client
}

// NewChatDeleter 返回基于 telegram.Client 的 lifecycle.Deleter。
func NewChatDeleter(client telegram.Client) lifecycle.Deleter {
	return chatDeleter{client: client}
}

func (d chatDeleter) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return d.client.DeleteMessage(ctx, chatID, messageID)
}

func (d chatDeleter) SendNotice(ctx context.Context, chatID int64, text string) error {
	_, err := d.client.SendText(ctx, telegram.TextMessage{ChatID: chatID, Text: text})
	return err
}
