package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"file-share-bot/internal/model"
	"file-share-bot/internal/repository"
	"file-share-bot/pkg/lifecycle"
	"file-share-bot/pkg/linkcodec"
	"file-share-bot/pkg/log"
	"file-share-bot/pkg/metrics"
	"file-share-bot/pkg/telegram"
)

// 单文件投递遇到限流时最多尝试的次数（首次 + 一次重试）。
const singleFileAttempts = 2

// DeletionScheduler 登记延迟删除任务，lifecycle.Scheduler 实现了该接口。
type DeletionScheduler interface {
	ScheduleDelete(chatID int64, messageID int, delay time.Duration) lifecycle.TaskID
}

// Sleeper 在 ctx 结束前等待 d。
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext 是基于计时器的 Sleeper。
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DeliveryOptions 是投递相关的配置。
type DeliveryOptions struct {
	Channels       Channels
	ProtectContent bool
	BatchLimit     int
	BatchPacing    time.Duration
	Texts          Texts
}

// DeliveryService 处理带参数的 /start：解析链接、检查订阅、投递文件。
type DeliveryService interface {
	// HandleStart 处理 payload 非空的 /start。所有用户可见的提示都已在内部发送，
	// 返回的错误只用于日志。
	HandleStart(ctx context.Context, user telegram.User, chatID int64, payload string) error
}

type deliveryService struct {
	client    telegram.Client
	files     repository.FileRepository
	gate      SubscriptionService
	settings  SettingsService
	scheduler DeletionScheduler
	opts      DeliveryOptions
	sleep     Sleeper
}

// NewDeliveryService 创建一个新的 DeliveryService 实例。sleep 为 nil 时使用 SleepContext。
func NewDeliveryService(
	client telegram.Client,
	files repository.FileRepository,
	gate SubscriptionService,
	settings SettingsService,
	scheduler DeletionScheduler,
	opts DeliveryOptions,
	sleep Sleeper,
) DeliveryService {
	if sleep == nil {
		sleep = SleepContext
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 100
	}
	return &deliveryService{
		client:    client,
		files:     files,
		gate:      gate,
		settings:  settings,
		scheduler: scheduler,
		opts:      opts,
		sleep:     sleep,
	}
}

func (s *deliveryService) HandleStart(ctx context.Context, user telegram.User, chatID int64, payload string) error {
	req, err := linkcodec.Parse(payload)
	if err != nil {
		metrics.DeliveryFailures.WithLabelValues("invalid_link").Inc()
		s.reply(ctx, chatID, textInvalidLink)
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}

	// 先检查订阅再查注册表，避免向未订阅用户泄露文件是否存在。
	ok, missing, err := s.gate.Check(ctx, user.ID)
	if err != nil {
		metrics.DeliveryFailures.WithLabelValues("gate_error").Inc()
		s.reply(ctx, chatID, textFileError)
		return fmt.Errorf("subscription check: %w", err)
	}
	if !ok {
		metrics.GateBlocked.Inc()
		s.promptJoin(ctx, user, chatID, req, missing)
		return ErrNotSubscribed
	}

	if req.Batch {
		return s.deliverBatch(ctx, chatID, req)
	}
	return s.deliverSingle(ctx, chatID, req.First)
}

func (s *deliveryService) promptJoin(ctx context.Context, user telegram.User, chatID int64, req linkcodec.Request, missing []int64) {
	kb := s.gate.JoinButtons(ctx, missing)
	kb = append(kb, telegram.Row(telegram.Button{
		Text: textTryAgain,
		URL:  linkcodec.DeepLink(s.client.Username(), req),
	}))
	_, err := s.client.SendText(ctx, telegram.TextMessage{
		ChatID:         chatID,
		Text:           FormatUserText(s.opts.Texts.ForceSub, user),
		Keyboard:       kb,
		DisablePreview: true,
	})
	if err != nil {
		log.Errorw("failed to send join prompt", "chat", chatID, "error", err)
	}
}

// deliverSingle 投递单个文件。限流时等待平台给出的时长后重试一次。
func (s *deliveryService) deliverSingle(ctx context.Context, chatID int64, id int) error {
	autoDelete := s.autoDeleteTime(ctx)

	err := retryRateLimited(ctx, s.sleep, singleFileAttempts, fmt.Sprintf("delivery of file %d", id), func() error {
		_, err := s.sendOne(ctx, chatID, id, false, autoDelete)
		return err
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrFileNotFound):
		metrics.DeliveryFailures.WithLabelValues("not_found").Inc()
		s.reply(ctx, chatID, textFileNotFound)
	default:
		metrics.DeliveryFailures.WithLabelValues("send_error").Inc()
		log.Errorw("delivery: failed to send file", "file", id, "chat", chatID, "error", err)
		s.reply(ctx, chatID, textFileError)
	}
	return err
}

// deliverBatch 按升序依次投递区间内的文件。缺失或失败的条目被跳过，不中断整个批次。
func (s *deliveryService) deliverBatch(ctx context.Context, chatID int64, req linkcodec.Request) error {
	if req.Last < req.First {
		metrics.DeliveryFailures.WithLabelValues("batch_order").Inc()
		s.reply(ctx, chatID, textBatchOrder)
		return ErrBatchOrder
	}
	if req.Size() > s.opts.BatchLimit {
		metrics.DeliveryFailures.WithLabelValues("batch_too_large").Inc()
		s.reply(ctx, chatID, fmt.Sprintf(textBatchTooLarge, s.opts.BatchLimit))
		return ErrBatchTooLarge
	}

	autoDelete := s.autoDeleteTime(ctx)
	s.reply(ctx, chatID, textBatchStarted)

	sent := 0
	for id := req.First; id <= req.Last; id++ {
		if err := ctx.Err(); err != nil {
			s.reply(context.WithoutCancel(ctx), chatID, textBatchError)
			return err
		}
		_, err := s.sendOne(ctx, chatID, id, true, autoDelete)
		switch {
		case errors.Is(err, ErrFileNotFound):
			continue
		case err != nil:
			if _, limited := telegram.AsRateLimit(err); limited {
				metrics.RateLimited.Inc()
			}
			log.Errorw("delivery: batch item failed, skipping", "file", id, "chat", chatID, "error", err)
		default:
			sent++
		}
		if id < req.Last {
			if err := s.sleep(ctx, s.opts.BatchPacing); err != nil {
				return err
			}
		}
	}

	log.Infof("delivery: batch %d-%d sent %d files to %d", req.First, req.Last, sent, chatID)
	s.reply(ctx, chatID, textBatchDone)
	return nil
}

// sendOne 查找记录并复制一条存储消息给用户。批量投递总是从短视频频道取消息。
func (s *deliveryService) sendOne(ctx context.Context, chatID int64, id int, batch bool, autoDelete int) (int, error) {
	rec, err := s.files.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrFileNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup file %d: %w", id, err)
	}
	if rec.Category == "" {
		rec.Category = model.CategoryShort
	}
	if _, err := model.ParseCategory(string(rec.Category)); err != nil {
		return 0, fmt.Errorf("file %d: %w", id, err)
	}

	source := s.opts.Channels.Short
	if !batch {
		source = s.opts.Channels.For(rec.Category)
	}
	if source == 0 {
		return 0, fmt.Errorf("no storage channel configured for %s files", rec.Category)
	}

	deleteAfter := 0
	if rec.Category.AutoDeletes() && autoDelete > 0 {
		deleteAfter = autoDelete
	}
	msgID, err := s.client.CopyMessage(ctx, telegram.CopyRequest{
		ToChatID:       chatID,
		FromChatID:     source,
		MessageID:      rec.ID,
		Caption:        s.caption(rec, batch, deleteAfter),
		ProtectContent: s.opts.ProtectContent,
	})
	if err != nil {
		return 0, err
	}
	metrics.Deliveries.WithLabelValues(string(rec.Category)).Inc()
	log.Infof("delivery: file %d sent to %d (category: %s)", id, chatID, rec.Category)

	if deleteAfter > 0 {
		s.scheduler.ScheduleDelete(chatID, msgID, time.Duration(deleteAfter)*time.Second)
	}
	return msgID, nil
}

// caption 生成投递说明，返回 nil 表示沿用频道里的原说明。
// 单文件投递的文档套用自定义模板，批量投递不套用；短视频追加自动删除提示。
func (s *deliveryService) caption(rec *model.FileRecord, batch bool, deleteAfter int) *string {
	var warning string
	if deleteAfter > 0 && s.opts.Texts.AutoDelete != "" {
		warning = autoDeleteWarning(s.opts.Texts.AutoDelete, deleteAfter)
	}

	if rec.Caption == nil {
		if warning == "" {
			return nil
		}
		// 旧记录没有说明快照，只能用提示替换原说明。
		log.Warnw("delivery: original caption unknown, sending the auto-delete warning alone", "file", rec.ID)
		return &warning
	}

	caption := *rec.Caption
	if tmpl := s.opts.Texts.CustomCaption; tmpl != "" && rec.IsDocument && !batch {
		caption = strings.NewReplacer(
			"{filename}", telegram.EscapeHTML(rec.FileName),
			"{previouscaption}", caption,
			"{file_size}", strconv.FormatInt(rec.FileSize, 10),
		).Replace(tmpl)
	}
	if warning != "" {
		if caption == "" {
			caption = warning
		} else {
			caption += "\n\n" + warning
		}
	}
	if caption == *rec.Caption {
		return nil
	}
	return &caption
}

func (s *deliveryService) autoDeleteTime(ctx context.Context) int {
	secs, err := s.settings.AutoDeleteTime(ctx)
	if err != nil {
		log.Errorw("delivery: failed to read auto-delete time, using default", "error", err)
	}
	return secs
}

func (s *deliveryService) reply(ctx context.Context, chatID int64, text string) {
	if _, err := s.client.SendText(ctx, telegram.TextMessage{ChatID: chatID, Text: text, DisablePreview: true}); err != nil {
		log.Errorw("failed to send reply", "chat", chatID, "error", err)
	}
}
