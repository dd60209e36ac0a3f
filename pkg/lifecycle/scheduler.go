// Package lifecycle 负责已投递短视频消息的定时删除。
//
// 每个删除任务独立触发、尽力而为：失败只记录日志，不重试，也不跨进程持久化。
// 任务登记在内存中的计时器集合里，可以单独取消；修改自动删除时长不会影响已登记的任务。
package lifecycle

import (
	"context"
	"sync"
	"time"

	"file-share-bot/pkg/log"
	"file-share-bot/pkg/metrics"
)

// Deleter 是执行删除和发送通知所需的最小平台能力。
type Deleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendNotice(ctx context.Context, chatID int64, text string) error
}

// TaskID 标识一个已登记的删除任务。
type TaskID uint64

// Timer 是可停止的计时器，time.Timer 满足该接口。
type Timer interface {
	Stop() bool
}

// AfterFunc 的签名与 time.AfterFunc 一致，测试中可替换。
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type task struct {
	chatID    int64
	messageID int
	timer     Timer
}

// Scheduler 管理所有待执行的删除任务。
type Scheduler struct {
	deleter     Deleter
	successText string
	timeout     time.Duration
	afterFunc   AfterFunc

	mu      sync.Mutex
	nextID  TaskID
	pending map[TaskID]*task
	stopped bool
}

// Option 调整 Scheduler 的行为。
type Option func(*Scheduler)

// WithAfterFunc 替换计时器实现。
func WithAfterFunc(f AfterFunc) Option {
	return func(s *Scheduler) { s.afterFunc = f }
}

// WithCallTimeout 设置单次删除调用的超时。
func WithCallTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// NewScheduler 创建调度器；successText 为空时删除成功后不发送通知。
func NewScheduler(deleter Deleter, successText string, opts ...Option) *Scheduler {
	s := &Scheduler{
		deleter:     deleter,
		successText: successText,
		timeout:     30 * time.Second,
		afterFunc:   realAfterFunc,
		pending:     make(map[TaskID]*task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleDelete 登记一个在 delay 之后删除 chatID 中 messageID 的任务，立即返回。
func (s *Scheduler) ScheduleDelete(chatID int64, messageID int, delay time.Duration) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		log.Warnf("lifecycle: scheduler stopped, dropping delete of message %d in chat %d", messageID, chatID)
		return 0
	}
	s.nextID++
	id := s.nextID
	t := &task{chatID: chatID, messageID: messageID}
	s.pending[id] = t
	t.timer = s.afterFunc(delay, func() { s.fire(id) })
	metrics.DeletionsScheduled.Inc()
	log.Debugf("lifecycle: task %d scheduled, chat=%d message=%d delay=%s", id, chatID, messageID, delay)
	return id
}

// Cancel 取消尚未触发的任务，返回任务是否仍处于待执行状态。
func (s *Scheduler) Cancel(id TaskID) bool {
	s.mu.Lock()
	t, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.timer.Stop()
	return true
}

// Pending 返回尚未触发的任务数量。
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop 在进程退出时停止所有计时器。未执行的删除随之丢失，这是可接受的。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	tasks := s.pending
	s.pending = make(map[TaskID]*task)
	s.mu.Unlock()
	for _, t := range tasks {
		t.timer.Stop()
	}
	if len(tasks) > 0 {
		log.Infof("lifecycle: stopped with %d pending deletions", len(tasks))
	}
}

func (s *Scheduler) fire(id TaskID) {
	s.mu.Lock()
	t, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.deleter.DeleteMessage(ctx, t.chatID, t.messageID); err != nil {
		metrics.DeletionsFailed.Inc()
		log.Errorw("lifecycle: auto-delete failed", "chat", t.chatID, "message", t.messageID, "error", err)
		return
	}
	metrics.DeletionsDone.Inc()
	log.Infof("lifecycle: message %d auto-deleted for chat %d", t.messageID, t.chatID)

	if s.successText == "" {
		return
	}
	if err := s.deleter.SendNotice(ctx, t.chatID, s.successText); err != nil {
		log.Errorw("lifecycle: failed to send deletion notice", "chat", t.chatID, "error", err)
	}
}
