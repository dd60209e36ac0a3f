package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"file-share-bot/internal/model"
	"file-share-bot/internal/repository"
	"file-share-bot/pkg/log"
	"file-share-bot/pkg/metrics"
	"file-share-bot/pkg/tasks"
	"file-share-bot/pkg/telegram"

	"github.com/google/uuid"
)

// 每处理这么多用户更新一次进度。
const broadcastProgressEvery = 50

// BroadcastPublisher 把广播任务投递到队列，pkg/kafka 的生产者实现了该接口。
type BroadcastPublisher interface {
	PublishBroadcast(ctx context.Context, task tasks.BroadcastTask) error
}

// BroadcastStats 是一次广播的统计。
type BroadcastStats struct {
	Total   int64
	Success int
	Failed  int
	Blocked int
	Deleted int
}

// SuccessRate 返回成功率（百分比）。
func (s BroadcastStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Total) * 100
}

// BroadcastService 向所有已登记用户群发一条消息。
type BroadcastService interface {
	// Start 校验被回复的消息并创建广播任务，返回任务 ID。
	Start(ctx context.Context, chatID, adminID int64, mode tasks.BroadcastMode, replied *telegram.Message) (string, error)
	// Process 执行一个广播任务。
	Process(ctx context.Context, task tasks.BroadcastTask) error
}

type broadcastService struct {
	client    telegram.Client
	users     repository.UserRepository
	publisher BroadcastPublisher
	pacing    time.Duration
	sleep     Sleeper
}

// NewBroadcastService 创建一个新的 BroadcastService 实例。publisher 为 nil 时广播在进程内异步执行。
func NewBroadcastService(client telegram.Client, users repository.UserRepository, publisher BroadcastPublisher, pacing time.Duration, sleep Sleeper) BroadcastService {
	if sleep == nil {
		sleep = SleepContext
	}
	return &broadcastService{client: client, users: users, publisher: publisher, pacing: pacing, sleep: sleep}
}

func (s *broadcastService) Start(ctx context.Context, chatID, adminID int64, mode tasks.BroadcastMode, replied *telegram.Message) (string, error) {
	if replied == nil {
		usage := "📢 <b>Broadcast Message</b>\n\nReply to a message with /broadcast to send it to all users."
		if mode == tasks.BroadcastForward {
			usage = "📢 <b>Forward Broadcast</b>\n\nReply to a forwarded message with /forward_broadcast"
		}
		s.reply(ctx, chatID, usage)
		return "", fmt.Errorf("%w: no message to broadcast", ErrInvalidInput)
	}
	if mode == tasks.BroadcastForward && replied.ForwardFromChatID == 0 {
		s.reply(ctx, chatID, "❌ The replied message must be a forwarded message from a channel!")
		return "", fmt.Errorf("%w: replied message is not a channel forward", ErrInvalidInput)
	}

	total, err := s.users.Count(ctx)
	if err != nil {
		s.reply(ctx, chatID, "❌ Failed to load users. Please try again later.")
		return "", fmt.Errorf("count users: %w", err)
	}
	statusID, err := s.client.SendText(ctx, telegram.TextMessage{
		ChatID: chatID,
		Text:   fmt.Sprintf("📢 <b>Starting Broadcast...</b>\n\n👥 Total users: %d\n⏳ Please wait...", total),
	})
	if err != nil {
		return "", fmt.Errorf("send broadcast status: %w", err)
	}

	task := tasks.BroadcastTask{
		ID:              uuid.NewString(),
		Mode:            mode,
		FromChatID:      replied.ChatID,
		MessageID:       replied.ID,
		AdminChatID:     chatID,
		StatusMessageID: statusID,
		RequestedBy:     adminID,
		CreatedAt:       time.Now(),
	}
	if s.publisher != nil {
		err := s.publisher.PublishBroadcast(ctx, task)
		if err == nil {
			log.Infof("broadcast: task %s queued by admin %d", task.ID, adminID)
			return task.ID, nil
		}
		log.Errorw("broadcast: failed to queue task, running in-process", "task", task.ID, "error", err)
	}
	go func() {
		if err := s.Process(ctx, task); err != nil {
			log.Errorw("broadcast: task failed", "task", task.ID, "error", err)
		}
	}()
	return task.ID, nil
}

func (s *broadcastService) Process(ctx context.Context, task tasks.BroadcastTask) error {
	total, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	stats := BroadcastStats{Total: total}

	err = s.users.Each(ctx, func(u model.BotUser) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.deliver(ctx, task, u.ID, &stats)
		if done := stats.Success + stats.Failed; done > 0 && done%broadcastProgressEvery == 0 {
			s.progress(ctx, task, stats)
		}
		return s.sleep(ctx, s.pacing)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scan users: %w", err)
	}

	title := "Broadcast Complete!"
	if task.Mode == tasks.BroadcastForward {
		title = "Forward Broadcast Complete!"
	}
	text := fmt.Sprintf("✅ <b>%s</b>\n\n📊 <b>Statistics:</b>\n✅ Success: %d\n❌ Failed: %d\n🚫 Blocked: %d\n🗑 Deleted Accounts: %d\n\n👥 Total: %d\n📈 Success Rate: %.1f%%",
		title, stats.Success, stats.Failed, stats.Blocked, stats.Deleted, stats.Total, stats.SuccessRate())
	if editErr := s.client.EditText(context.WithoutCancel(ctx), task.AdminChatID, task.StatusMessageID, text, nil); editErr != nil {
		log.Errorw("broadcast: failed to post final statistics", "task", task.ID, "error", editErr)
	}
	log.Infof("broadcast: task %s by admin %d finished: %d success, %d failed", task.ID, task.RequestedBy, stats.Success, stats.Failed)
	return err
}

// deliver 向单个用户发送，限流时等待后重试一次，并按结果分类计数。
func (s *broadcastService) deliver(ctx context.Context, task tasks.BroadcastTask, userID int64, stats *BroadcastStats) {
	err := retryRateLimited(ctx, s.sleep, 2, "broadcast", func() error {
		return s.send(ctx, task, userID)
	})
	switch {
	case err == nil:
		stats.Success++
		metrics.BroadcastResults.WithLabelValues("success").Inc()
	case errors.Is(err, telegram.ErrUserDeactivated):
		stats.Deleted++
		metrics.BroadcastResults.WithLabelValues("deleted").Inc()
		if derr := s.users.Delete(ctx, userID); derr != nil {
			log.Errorw("broadcast: failed to delete deactivated user", "user", userID, "error", derr)
		}
	case errors.Is(err, telegram.ErrBlocked):
		stats.Blocked++
		metrics.BroadcastResults.WithLabelValues("blocked").Inc()
	default:
		stats.Failed++
		metrics.BroadcastResults.WithLabelValues("failed").Inc()
		log.Errorw("broadcast: delivery failed", "user", userID, "error", err)
	}
}

func (s *broadcastService) send(ctx context.Context, task tasks.BroadcastTask, userID int64) error {
	var err error
	switch task.Mode {
	case tasks.BroadcastForward:
		_, err = s.client.ForwardMessage(ctx, userID, task.FromChatID, task.MessageID)
	default:
		_, err = s.client.CopyMessage(ctx, telegram.CopyRequest{ToChatID: userID, FromChatID: task.FromChatID, MessageID: task.MessageID})
	}
	return err
}

func (s *broadcastService) progress(ctx context.Context, task tasks.BroadcastTask, stats BroadcastStats) {
	text := fmt.Sprintf("📢 <b>Broadcasting...</b>\n\n✅ Success: %d\n❌ Failed: %d\n🚫 Blocked: %d\n❌ Deleted: %d\n\n⏳ Progress: %d/%d",
		stats.Success, stats.Failed, stats.Blocked, stats.Deleted, stats.Success+stats.Failed, stats.Total)
	if err := s.client.EditText(ctx, task.AdminChatID, task.StatusMessageID, text, nil); err != nil {
		log.Warnw("broadcast: failed to update progress", "task", task.ID, "error", err)
	}
}

func (s *broadcastService) reply(ctx context.Context, chatID int64, text string) {
	if _, err := s.client.SendText(ctx, telegram.TextMessage{ChatID: chatID, Text: text}); err != nil {
		log.Errorw("failed to send reply", "chat", chatID, "error", err)
	}
}
