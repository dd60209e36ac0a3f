package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"file-share-bot/internal/model"
	"file-share-bot/internal/repository"
	"file-share-bot/pkg/linkcodec"
	"file-share-bot/pkg/log"
	"file-share-bot/pkg/telegram"
)

// LinkFlowOptions 是管理员生成链接流程的配置。
type LinkFlowOptions struct {
	Channels             Channels
	DisableChannelButton bool
	BatchLimit           int
}

// LinkFlowService 管理 /genlink 与 /batch 两个多步流程，状态按管理员 ID 保存在会话存储中。
type LinkFlowService interface {
	StartGenLink(ctx context.Context, adminID, chatID int64) error
	StartBatch(ctx context.Context, adminID, chatID int64) error
	// HandleForward 处理管理员转发来的消息。没有进行中的流程时返回 false。
	HandleForward(ctx context.Context, adminID int64, msg *telegram.Message) (bool, error)
	// Cancel 结束进行中的流程，返回是否确实存在流程。
	Cancel(ctx context.Context, adminID int64) (bool, error)
}

type linkFlowService struct {
	client   telegram.Client
	files    repository.FileRepository
	sessions repository.SessionRepository
	opts     LinkFlowOptions
	now      func() time.Time
}

// NewLinkFlowService 创建一个新的 LinkFlowService 实例。
func NewLinkFlowService(client telegram.Client, files repository.FileRepository, sessions repository.SessionRepository, opts LinkFlowOptions) LinkFlowService {
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 100
	}
	return &linkFlowService{client: client, files: files, sessions: sessions, opts: opts, now: time.Now}
}

func (s *linkFlowService) StartGenLink(ctx context.Context, adminID, chatID int64) error {
	st := &model.FlowState{AdminID: adminID, Kind: model.FlowGenLink, Step: model.StepAwaitMessage, StartedAt: s.now()}
	if err := s.sessions.Put(ctx, st); err != nil {
		return fmt.Errorf("save genlink flow: %w", err)
	}
	s.reply(ctx, chatID, "🔗 <b>Single Link Generator</b>\n\n"+
		"Forward a message from any database channel (SHORT or MOVIE).\n\n"+
		"• From SHORT channel = Auto-delete link\n"+
		"• From MOVIE channel = Permanent link", nil)
	return nil
}

func (s *linkFlowService) StartBatch(ctx context.Context, adminID, chatID int64) error {
	st := &model.FlowState{AdminID: adminID, Kind: model.FlowBatch, Step: model.StepAwaitFirst, StartedAt: s.now()}
	if err := s.sessions.Put(ctx, st); err != nil {
		return fmt.Errorf("save batch flow: %w", err)
	}
	s.reply(ctx, chatID, "📦 <b>Batch Link Generator</b>\n\n"+
		"<b>Steps:</b>\n"+
		"1️⃣ Forward the <b>first message</b> from SHORT database channel\n"+
		"2️⃣ Forward the <b>last message</b> from SHORT database channel\n\n"+
		"⚠️ Make sure both messages are from the SHORT database channel!\n"+
		"⚠️ Batch links are for SHORT category only (auto-delete).", nil)
	return nil
}

func (s *linkFlowService) Cancel(ctx context.Context, adminID int64) (bool, error) {
	if _, err := s.sessions.Get(ctx, adminID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, s.sessions.Delete(ctx, adminID)
}

func (s *linkFlowService) HandleForward(ctx context.Context, adminID int64, msg *telegram.Message) (bool, error) {
	st, err := s.sessions.Get(ctx, adminID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load flow: %w", err)
	}

	switch st.Kind {
	case model.FlowGenLink:
		return true, s.genLinkStep(ctx, st, msg)
	case model.FlowBatch:
		return true, s.batchStep(ctx, st, msg)
	}
	// 未知的流程类型来自过期的数据，直接丢弃。
	return false, s.sessions.Delete(ctx, adminID)
}

func (s *linkFlowService) genLinkStep(ctx context.Context, st *model.FlowState, msg *telegram.Message) error {
	defer s.finish(ctx, st.AdminID)

	category, ok := s.opts.Channels.CategoryOf(msg.ForwardFromChatID)
	if !ok {
		s.reply(ctx, msg.ChatID, "❌ This message is not from a recognized database channel!\n"+
			"Please forward from SHORT or MOVIE database channel.", nil)
		return nil
	}
	id := msg.ForwardFromMessageID
	exists, err := s.files.Exists(ctx, id)
	if err != nil {
		s.reply(ctx, msg.ChatID, "❌ Error checking the file. Please try again later.", nil)
		return fmt.Errorf("check file %d: %w", id, err)
	}
	if !exists {
		s.reply(ctx, msg.ChatID, "⚠️ File not found in database. It may not have been processed yet.\n"+
			"Wait a few seconds and try again.", nil)
		return nil
	}

	label := "SHORT (Auto-Delete)"
	if category == model.CategoryMovie {
		label = "MOVIE (Permanent)"
	}
	link := linkcodec.DeepLink(s.client.Username(), linkcodec.Single(id))
	s.reply(ctx, msg.ChatID, fmt.Sprintf(
		"✅ <b>Link Generated!</b>\n\n📁 Category: %s\n🔢 Message ID: <code>%d</code>\n🔗 Link: <code>%s</code>",
		label, id, link), s.shareKeyboard("🔗 Share Link", link))
	log.Infof("links: single link generated by admin %d: %d (%s)", st.AdminID, id, category)
	return nil
}

func (s *linkFlowService) batchStep(ctx context.Context, st *model.FlowState, msg *telegram.Message) error {
	// 来源不对时保留流程，管理员可以重新转发。
	if msg.ForwardFromChatID == 0 || msg.ForwardFromChatID != s.opts.Channels.Short {
		s.reply(ctx, msg.ChatID, "❌ This message is not from the SHORT database channel!\n"+
			"Please forward messages from the correct channel.", nil)
		return nil
	}
	id := msg.ForwardFromMessageID

	switch st.Step {
	case model.StepAwaitFirst:
		st.FirstID = id
		st.Step = model.StepAwaitLast
		if err := s.sessions.Put(ctx, st); err != nil {
			return fmt.Errorf("save batch flow: %w", err)
		}
		s.reply(ctx, msg.ChatID, fmt.Sprintf("✅ First message ID: <code>%d</code>\n\n"+
			"Now forward the <b>last message</b> from the SHORT database channel.", id), nil)
		return nil
	case model.StepAwaitLast:
		defer s.finish(ctx, st.AdminID)
		req := linkcodec.Range(st.FirstID, id)
		if req.Last < req.First {
			s.reply(ctx, msg.ChatID, "❌ Last message ID must be greater than first message ID!\n"+
				"Please start over with /batch", nil)
			return nil
		}
		if total := req.Size(); total > s.opts.BatchLimit {
			s.reply(ctx, msg.ChatID, fmt.Sprintf("❌ Batch too large! (%d files)\n"+
				"Maximum batch size is %d files.\nPlease select a smaller range.", total, s.opts.BatchLimit), nil)
			return nil
		}
		link := linkcodec.DeepLink(s.client.Username(), req)
		s.reply(ctx, msg.ChatID, fmt.Sprintf(
			"✅ <b>Batch Link Created!</b>\n\n📊 Range: %d to %d\n📦 Total Files: %d\n🔗 Link: <code>%s</code>\n\n"+
				"⚠️ This is a SHORT category batch (auto-delete enabled)",
			req.First, req.Last, req.Size(), link), s.shareKeyboard("🔗 Share Batch Link", link))
		log.Infof("links: batch created by admin %d: %d-%d", st.AdminID, req.First, req.Last)
		return nil
	}
	s.finish(ctx, st.AdminID)
	return fmt.Errorf("batch flow in unexpected step %d", st.Step)
}

func (s *linkFlowService) finish(ctx context.Context, adminID int64) {
	if err := s.sessions.Delete(ctx, adminID); err != nil {
		log.Errorw("links: failed to clear flow state", "admin", adminID, "error", err)
	}
}

func (s *linkFlowService) shareKeyboard(text, link string) telegram.Keyboard {
	if s.opts.DisableChannelButton {
		return nil
	}
	return telegram.Keyboard{telegram.Row(telegram.Button{Text: text, URL: linkcodec.ShareURL(link)})}
}

func (s *linkFlowService) reply(ctx context.Context, chatID int64, text string, kb telegram.Keyboard) {
	_, err := s.client.SendText(ctx, telegram.TextMessage{ChatID: chatID, Text: text, Keyboard: kb, DisablePreview: true})
	if err != nil {
		log.Errorw("failed to send reply", "chat", chatID, "error", err)
	}
}
