package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"file-share-bot/internal/model"
	"file-share-bot/internal/repository"
	"file-share-bot/pkg/lifecycle"
	"file-share-bot/pkg/telegram"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	shortChannel int64 = -1001
	movieChannel int64 = -1002
	botName            = "share_bot"
)

type forwardCall struct {
	to, from int64
	id       int
}

type editCall struct {
	chatID    int64
	messageID int
	text      string
}

// fakeClient 记录所有调用，错误按需注入。
type fakeClient struct {
	mu sync.Mutex

	nextID   int
	texts    []telegram.TextMessage
	photos   []telegram.PhotoMessage
	copies   []telegram.CopyRequest
	forwards []forwardCall
	edits    []editCall
	deletes  []int
	answered []string

	// copyErrs 按消息 ID 给出依次返回的错误，用完后调用成功。
	copyErrs    map[int][]error
	forwardErrs map[int64][]error
	editErr     error

	members      map[int64]map[int64]telegram.MemberStatus
	memberErrs   map[int64]error
	chats        map[int64]telegram.ChatInfo
	getChatCalls int
	exported     int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		nextID:      1000,
		copyErrs:    map[int][]error{},
		forwardErrs: map[int64][]error{},
		members:     map[int64]map[int64]telegram.MemberStatus{},
		memberErrs:  map[int64]error{},
		chats:       map[int64]telegram.ChatInfo{},
	}
}

func (c *fakeClient) Username() string { return botName }
func (c *fakeClient) SelfID() int64    { return 1 }

func (c *fakeClient) id() int {
	c.nextID++
	return c.nextID
}

func (c *fakeClient) SendText(_ context.Context, msg telegram.TextMessage) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, msg)
	return c.id(), nil
}

func (c *fakeClient) SendPhoto(_ context.Context, msg telegram.PhotoMessage) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.photos = append(c.photos, msg)
	return c.id(), nil
}

func (c *fakeClient) EditText(_ context.Context, chatID int64, messageID int, text string, _ telegram.Keyboard) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editErr != nil {
		return c.editErr
	}
	c.edits = append(c.edits, editCall{chatID: chatID, messageID: messageID, text: text})
	return nil
}

func (c *fakeClient) CopyMessage(_ context.Context, req telegram.CopyRequest) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errs := c.copyErrs[req.MessageID]; len(errs) > 0 {
		c.copyErrs[req.MessageID] = errs[1:]
		return 0, errs[0]
	}
	c.copies = append(c.copies, req)
	return c.id(), nil
}

func (c *fakeClient) ForwardMessage(_ context.Context, to, from int64, id int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errs := c.forwardErrs[to]; len(errs) > 0 {
		c.forwardErrs[to] = errs[1:]
		return 0, errs[0]
	}
	c.forwards = append(c.forwards, forwardCall{to: to, from: from, id: id})
	return c.id(), nil
}

func (c *fakeClient) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, messageID)
	return nil
}

func (c *fakeClient) AnswerCallback(_ context.Context, id, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answered = append(c.answered, id)
	return nil
}

func (c *fakeClient) GetChat(_ context.Context, chatID int64) (telegram.ChatInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getChatCalls++
	chat, ok := c.chats[chatID]
	if !ok {
		return telegram.ChatInfo{}, fmt.Errorf("chat %d not found", chatID)
	}
	return chat, nil
}

func (c *fakeClient) GetMemberStatus(_ context.Context, chatID, userID int64) (telegram.MemberStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.memberErrs[chatID]; err != nil {
		return "", err
	}
	if st, ok := c.members[chatID][userID]; ok {
		return st, nil
	}
	return "", telegram.ErrNotParticipant
}

func (c *fakeClient) ExportInviteLink(_ context.Context, chatID int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exported++
	return fmt.Sprintf("https://t.me/+exported%d", -chatID), nil
}

func (c *fakeClient) setMember(chatID, userID int64, st telegram.MemberStatus) {
	if c.members[chatID] == nil {
		c.members[chatID] = map[int64]telegram.MemberStatus{}
	}
	c.members[chatID][userID] = st
}

func (c *fakeClient) textsTo(chatID int64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.texts {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (c *fakeClient) lastText() telegram.TextMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.texts) == 0 {
		return telegram.TextMessage{}
	}
	return c.texts[len(c.texts)-1]
}

func (c *fakeClient) copiedIDs() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int, 0, len(c.copies))
	for _, cp := range c.copies {
		ids = append(ids, cp.MessageID)
	}
	return ids
}

type scheduled struct {
	chatID    int64
	messageID int
	delay     time.Duration
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []scheduled
}

func (f *fakeScheduler) ScheduleDelete(chatID int64, messageID int, delay time.Duration) lifecycle.TaskID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, scheduled{chatID: chatID, messageID: messageID, delay: delay})
	return lifecycle.TaskID(len(f.tasks))
}

// recordingSleeper 记录等待时长而不真正等待。
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

// countingFiles 统计注册表查询次数。
type countingFiles struct {
	repository.FileRepository
	mu   sync.Mutex
	gets int
}

func (c *countingFiles) Get(ctx context.Context, id int) (*model.FileRecord, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.FileRepository.Get(ctx, id)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.FileRecord{}, &model.BotUser{}, &model.Setting{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func putFiles(t *testing.T, repo repository.FileRepository, category model.Category, ids ...int) {
	t.Helper()
	for _, id := range ids {
		_, err := repo.Put(context.Background(), &model.FileRecord{ID: id, FileRef: model.FileRef(fmt.Sprint(id)), Category: category})
		require.NoError(t, err)
	}
}

func testTexts() Texts {
	return Texts{
		Start:             "Hello {first}",
		ForceSub:          "Join first, {first}",
		AutoDelete:        "Deleted in {time}",
		AutoDeleteSuccess: "deleted",
		NotAuthorized:     "no",
	}
}
