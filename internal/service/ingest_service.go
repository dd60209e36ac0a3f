package service

import (
	"context"
	"fmt"
	"strconv"

	"file-share-bot/internal/model"
	"file-share-bot/internal/repository"
	"file-share-bot/pkg/linkcodec"
	"file-share-bot/pkg/log"
	"file-share-bot/pkg/metrics"
	"file-share-bot/pkg/telegram"
)

// IngestOptions 是文件登记相关的配置。
type IngestOptions struct {
	Channels             Channels
	DisableChannelButton bool
}

// IngestService 把存储频道中的消息登记到文件注册表，并生成分享链接。
type IngestService interface {
	// HandleChannelPost 登记存储频道中的新消息，并在频道中回复链接。非存储频道的消息被忽略。
	HandleChannelPost(ctx context.Context, msg *telegram.Message) error
	// HandleDirectUpload 把管理员私聊发送的文件转存到短视频频道，以转存后的消息 ID 登记。
	HandleDirectUpload(ctx context.Context, msg *telegram.Message) error
}

type ingestService struct {
	client telegram.Client
	files  repository.FileRepository
	opts   IngestOptions
	sleep  Sleeper
}

// NewIngestService 创建一个新的 IngestService 实例。
func NewIngestService(client telegram.Client, files repository.FileRepository, opts IngestOptions, sleep Sleeper) IngestService {
	if sleep == nil {
		sleep = SleepContext
	}
	return &ingestService{client: client, files: files, opts: opts, sleep: sleep}
}

// snapshot 从消息中提取登记所需的元数据。
func snapshot(id int, category model.Category, msg *telegram.Message) *model.FileRecord {
	caption := msg.FormattedCaption()
	rec := &model.FileRecord{
		ID:       id,
		FileRef:  model.FileRef(strconv.Itoa(id)),
		Category: category,
		Caption:  &caption,
	}
	if msg.Document != nil {
		rec.IsDocument = true
		rec.FileName = msg.Document.FileName
		rec.FileSize = msg.Document.FileSize
	}
	return rec
}

func (s *ingestService) register(ctx context.Context, rec *model.FileRecord) error {
	inserted, err := s.files.Put(ctx, rec)
	if err != nil {
		return fmt.Errorf("register file %d: %w", rec.ID, err)
	}
	if !inserted {
		log.Infof("ingest: file %d already registered, keeping the existing record", rec.ID)
		return nil
	}
	metrics.FilesIngested.WithLabelValues(string(rec.Category)).Inc()
	return nil
}

func (s *ingestService) shareKeyboard(text, link string) telegram.Keyboard {
	if s.opts.DisableChannelButton {
		return nil
	}
	return telegram.Keyboard{telegram.Row(telegram.Button{Text: text, URL: linkcodec.ShareURL(link)})}
}

func (s *ingestService) HandleChannelPost(ctx context.Context, msg *telegram.Message) error {
	category, ok := s.opts.Channels.CategoryOf(msg.ChatID)
	if !ok {
		return nil
	}
	if err := s.register(ctx, snapshot(msg.ID, category, msg)); err != nil {
		return err
	}

	link := linkcodec.DeepLink(s.client.Username(), linkcodec.Single(msg.ID))
	var text string
	switch category {
	case model.CategoryShort:
		text = fmt.Sprintf("📦 <b>Short File Link (Auto-Delete)</b>\n\n🔗 Link: <code>%s</code>\n\n⚠️ This file will be auto-deleted after the set time.", link)
	case model.CategoryMovie:
		text = fmt.Sprintf("🎬 <b>Movie File Link (Permanent)</b>\n\n🔗 Link: <code>%s</code>\n\n✅ This file will NOT be deleted automatically.", link)
	}
	log.Infof("ingest: %s file added: %d", category, msg.ID)

	// 回帖只是方便运营，失败不影响登记结果。
	err := retryRateLimited(ctx, s.sleep, singleFileAttempts, "channel link reply", func() error {
		_, err := s.client.SendText(ctx, telegram.TextMessage{
			ChatID:         msg.ChatID,
			Text:           text,
			ReplyTo:        msg.ID,
			Keyboard:       s.shareKeyboard("🔗 Share Link", link),
			DisablePreview: true,
		})
		return err
	})
	if err != nil {
		log.Errorw("ingest: failed to post link into channel", "chat", msg.ChatID, "message", msg.ID, "error", err)
	}
	return nil
}

func (s *ingestService) HandleDirectUpload(ctx context.Context, msg *telegram.Message) error {
	short := s.opts.Channels.Short
	var forwardedID int
	err := retryRateLimited(ctx, s.sleep, singleFileAttempts, "direct upload", func() error {
		var err error
		forwardedID, err = s.client.ForwardMessage(ctx, short, msg.ChatID, msg.ID)
		return err
	})
	if err == nil {
		err = s.register(ctx, snapshot(forwardedID, model.CategoryShort, msg))
	}
	if err != nil {
		log.Errorw("ingest: direct upload failed", "chat", msg.ChatID, "message", msg.ID, "error", err)
		s.reply(ctx, msg.ChatID, "❌ Failed to store the file. Please try again later.", nil)
		return err
	}

	link := linkcodec.DeepLink(s.client.Username(), linkcodec.Single(forwardedID))
	s.reply(ctx, msg.ChatID, fmt.Sprintf(
		"✅ <b>File uploaded to SHORT database!</b>\n\n🔗 Link: <code>%s</code>\n\n⚠️ Auto-delete enabled\n📝 To create permanent movie links, send to Movie DB channel.",
		link), s.shareKeyboard("🔗 Share Link", link))
	log.Infof("ingest: direct upload forwarded to short channel as %d", forwardedID)
	return nil
}

func (s *ingestService) reply(ctx context.Context, chatID int64, text string, kb telegram.Keyboard) {
	_, err := s.client.SendText(ctx, telegram.TextMessage{ChatID: chatID, Text: text, Keyboard: kb, DisablePreview: true})
	if err != nil {
		log.Errorw("failed to send reply", "chat", chatID, "error", err)
	}
}
