package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"file-share-bot/internal/model"
	"file-share-bot/internal/repository"
	"file-share-bot/pkg/lifecycle"
	"file-share-bot/pkg/linkcodec"
	"file-share-bot/pkg/telegram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userChat int64 = 555

var testUser = telegram.User{ID: 555, FirstName: "Ann"}

func strPtr(s string) *string { return &s }

type deliveryEnv struct {
	client    *fakeClient
	files     *countingFiles
	settings  SettingsService
	scheduler *fakeScheduler
	sleeper   *recordingSleeper
	opts      DeliveryOptions
	static    []int64
}

func newDeliveryEnv(t *testing.T) *deliveryEnv {
	t.Helper()
	db := newTestDB(t)
	return &deliveryEnv{
		client:    newFakeClient(),
		files:     &countingFiles{FileRepository: repository.NewFileRepository(db)},
		settings:  NewSettingsService(repository.NewSettingRepository(db), 25200),
		scheduler: &fakeScheduler{},
		sleeper:   &recordingSleeper{},
		opts: DeliveryOptions{
			Channels:    Channels{Short: shortChannel, Movie: movieChannel},
			BatchLimit:  100,
			BatchPacing: time.Second,
			Texts:       testTexts(),
		},
	}
}

func (e *deliveryEnv) service() DeliveryService {
	gate := NewSubscriptionService(e.client, e.settings, e.static)
	return NewDeliveryService(e.client, e.files, gate, e.settings, e.scheduler, e.opts, e.sleeper.Sleep)
}

func (e *deliveryEnv) start(t *testing.T, req linkcodec.Request) error {
	t.Helper()
	return e.service().HandleStart(context.Background(), testUser, userChat, req.Token())
}

func TestDeliverSingleShortSchedulesDeletion(t *testing.T) {
	env := newDeliveryEnv(t)
	putFiles(t, env.files, model.CategoryShort, 10)

	require.NoError(t, env.start(t, linkcodec.Single(10)))

	require.Len(t, env.client.copies, 1)
	cp := env.client.copies[0]
	assert.Equal(t, shortChannel, cp.FromChatID)
	assert.Equal(t, userChat, cp.ToChatID)
	assert.Equal(t, 10, cp.MessageID)
	require.NotNil(t, cp.Caption)
	assert.Equal(t, "Deleted in 7h 0s", *cp.Caption)

	require.Len(t, env.scheduler.tasks, 1)
	assert.Equal(t, scheduled{chatID: userChat, messageID: env.client.nextID, delay: 25200 * time.Second}, env.scheduler.tasks[0])
	assert.Empty(t, env.client.texts)
}

func TestDeliverSingleMovieIsPermanent(t *testing.T) {
	env := newDeliveryEnv(t)
	_, err := env.files.Put(context.Background(), &model.FileRecord{ID: 20, FileRef: "20", Category: model.CategoryMovie, Caption: strPtr("<b>Big</b> Movie")})
	require.NoError(t, err)
	putFiles(t, env.files, model.CategoryMovie, 21)

	require.NoError(t, env.start(t, linkcodec.Single(20)))
	require.NoError(t, env.start(t, linkcodec.Single(21)))

	require.Len(t, env.client.copies, 2)
	assert.Equal(t, movieChannel, env.client.copies[0].FromChatID)
	assert.Nil(t, env.client.copies[0].Caption, "unchanged caption is left to the platform")
	assert.Nil(t, env.client.copies[1].Caption, "unknown caption is never overridden")
	assert.Empty(t, env.scheduler.tasks)
}

func TestDeliverKeepsCaptionFormatting(t *testing.T) {
	env := newDeliveryEnv(t)
	_, err := env.files.Put(context.Background(), &model.FileRecord{
		ID: 10, FileRef: "10", Category: model.CategoryShort, Caption: strPtr(`<b>Bold</b> &amp; <a href="https://x.y">link</a>`),
	})
	require.NoError(t, err)

	require.NoError(t, env.start(t, linkcodec.Single(10)))
	require.Len(t, env.client.copies, 1)
	require.NotNil(t, env.client.copies[0].Caption)
	assert.Equal(t, `<b>Bold</b> &amp; <a href="https://x.y">link</a>`+"\n\nDeleted in 7h 0s", *env.client.copies[0].Caption)
}

func TestDeliverBatchSkipsCustomCaption(t *testing.T) {
	env := newDeliveryEnv(t)
	env.opts.Texts.CustomCaption = "{filename} | {previouscaption}"
	for _, id := range []int{10, 11} {
		_, err := env.files.Put(context.Background(), &model.FileRecord{
			ID: id, FileRef: "ref", Category: model.CategoryShort,
			Caption: strPtr("<i>orig</i>"), FileName: "a.pdf", IsDocument: true,
		})
		require.NoError(t, err)
	}

	require.NoError(t, env.start(t, linkcodec.Range(10, 11)))
	require.Len(t, env.client.copies, 2)
	for _, cp := range env.client.copies {
		require.NotNil(t, cp.Caption)
		assert.Equal(t, "<i>orig</i>\n\nDeleted in 7h 0s", *cp.Caption)
	}

	require.NoError(t, env.start(t, linkcodec.Single(10)))
	require.Len(t, env.client.copies, 3)
	assert.Equal(t, "a.pdf | <i>orig</i>\n\nDeleted in 7h 0s", *env.client.copies[2].Caption)
}

func TestDeliverInvalidLink(t *testing.T) {
	env := newDeliveryEnv(t)

	err := env.service().HandleStart(context.Background(), testUser, userChat, "not a token!")
	assert.ErrorIs(t, err, ErrInvalidLink)
	assert.Equal(t, []string{textInvalidLink}, env.client.textsTo(userChat))
	assert.Zero(t, env.files.gets)
	assert.Empty(t, env.client.copies)
}

func TestDeliverMissingFile(t *testing.T) {
	env := newDeliveryEnv(t)
	putFiles(t, env.files, model.CategoryShort, 10, 20, 30)

	err := env.start(t, linkcodec.Single(15))
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.Equal(t, []string{textFileNotFound}, env.client.textsTo(userChat))
	assert.Empty(t, env.client.copies)
}

func TestDeliverBatchSkipsMissing(t *testing.T) {
	env := newDeliveryEnv(t)
	putFiles(t, env.files, model.CategoryShort, 10, 11, 13, 14)

	require.NoError(t, env.start(t, linkcodec.Range(10, 14)))

	assert.Equal(t, []int{10, 11, 13, 14}, env.client.copiedIDs())
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, env.sleeper.delays)
	assert.Equal(t, []string{textBatchStarted, textBatchDone}, env.client.textsTo(userChat))
	assert.Len(t, env.scheduler.tasks, 4)
	for _, cp := range env.client.copies {
		assert.Equal(t, shortChannel, cp.FromChatID)
	}
}

func TestDeliverBatchMovieRecordsComeFromShortChannelWithoutDeletion(t *testing.T) {
	env := newDeliveryEnv(t)
	putFiles(t, env.files, model.CategoryMovie, 40, 41)

	require.NoError(t, env.start(t, linkcodec.Range(40, 41)))

	require.Len(t, env.client.copies, 2)
	assert.Equal(t, shortChannel, env.client.copies[0].FromChatID)
	assert.Empty(t, env.scheduler.tasks)
}

func TestDeliverBatchOrderRejectedBeforeLookup(t *testing.T) {
	env := newDeliveryEnv(t)
	putFiles(t, env.files, model.CategoryShort, 10, 14)

	err := env.start(t, linkcodec.Range(14, 10))
	assert.ErrorIs(t, err, ErrBatchOrder)
	assert.Zero(t, env.files.gets)
	assert.Equal(t, []string{textBatchOrder}, env.client.textsTo(userChat))
}

func TestDeliverBatchTooLarge(t *testing.T) {
	env := newDeliveryEnv(t)

	err := env.start(t, linkcodec.Range(1, 101))
	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.Zero(t, env.files.gets)
	assert.Equal(t, []string{"❌ Batch size too large! Maximum 100 files at once."}, env.client.textsTo(userChat))

	// 恰好 100 个是允许的
	err = env.start(t, linkcodec.Range(1, 100))
	assert.NoError(t, err)
	assert.Equal(t, 100, env.files.gets)
}

func TestDeliverGateBlocksNonMembers(t *testing.T) {
	const chanA, chanB int64 = -2001, -2002
	env := newDeliveryEnv(t)
	env.static = []int64{chanA}
	_, err := env.settings.AddForceSubChannel(context.Background(), chanB)
	require.NoError(t, err)
	env.client.setMember(chanA, testUser.ID, telegram.StatusKicked)
	env.client.chats[chanA] = telegram.ChatInfo{ID: chanA, Title: "Alpha", InviteLink: "https://t.me/+alpha"}
	env.client.chats[chanB] = telegram.ChatInfo{ID: chanB, Title: "Beta"}
	putFiles(t, env.files, model.CategoryShort, 10)

	req := linkcodec.Single(10)
	err = env.start(t, req)
	assert.ErrorIs(t, err, ErrNotSubscribed)
	assert.Zero(t, env.files.gets, "registry is not consulted for blocked users")
	assert.Empty(t, env.client.copies)

	msg := env.client.lastText()
	assert.Equal(t, "Join first, Ann", msg.Text)
	require.Len(t, msg.Keyboard, 3)
	assert.Equal(t, telegram.Button{Text: "📢 Join Alpha", URL: "https://t.me/+alpha"}, msg.Keyboard[0][0])
	assert.Equal(t, telegram.Button{Text: "📢 Join Beta", URL: "https://t.me/+exported2002"}, msg.Keyboard[1][0])
	assert.Equal(t, telegram.Button{Text: textTryAgain, URL: linkcodec.DeepLink(botName, req)}, msg.Keyboard[2][0])

	// 加入后同一链接可以正常使用
	env.client.setMember(chanA, testUser.ID, telegram.StatusMember)
	env.client.setMember(chanB, testUser.ID, telegram.StatusAdministrator)
	require.NoError(t, env.start(t, req))
	assert.Len(t, env.client.copies, 1)
}

func TestDeliverSingleRetriesOnceAfterRateLimit(t *testing.T) {
	env := newDeliveryEnv(t)
	putFiles(t, env.files, model.CategoryShort, 10)
	env.client.copyErrs[10] = []error{&telegram.RateLimitError{RetryAfter: 3 * time.Second}}

	require.NoError(t, env.start(t, linkcodec.Single(10)))
	assert.Equal(t, []int{10}, env.client.copiedIDs())
	assert.Equal(t, []time.Duration{3 * time.Second}, env.sleeper.delays)
}

func TestDeliverSingleGivesUpAfterSecondRateLimit(t *testing.T) {
	env := newDeliveryEnv(t)
	putFiles(t, env.files, model.CategoryShort, 10)
	rl := &telegram.RateLimitError{RetryAfter: time.Second}
	env.client.copyErrs[10] = []error{rl, rl}

	err := env.start(t, linkcodec.Single(10))
	_, limited := telegram.AsRateLimit(err)
	assert.True(t, limited)
	assert.Equal(t, []string{textFileError}, env.client.textsTo(userChat))
	assert.Empty(t, env.scheduler.tasks)
}

func TestDeliverBatchSkipsRateLimitedItem(t *testing.T) {
	env := newDeliveryEnv(t)
	putFiles(t, env.files, model.CategoryShort, 10, 11, 12)
	env.client.copyErrs[11] = []error{&telegram.RateLimitError{RetryAfter: 30 * time.Second}}

	require.NoError(t, env.start(t, linkcodec.Range(10, 12)))
	assert.Equal(t, []int{10, 12}, env.client.copiedIDs())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, env.sleeper.delays)
	assert.Equal(t, textBatchDone, env.client.lastText().Text)
}

func TestDeliverWithAutoDeleteDisabled(t *testing.T) {
	env := newDeliveryEnv(t)
	putFiles(t, env.files, model.CategoryShort, 10)
	require.NoError(t, env.settings.SetAutoDeleteTime(context.Background(), 0))

	require.NoError(t, env.start(t, linkcodec.Single(10)))
	require.Len(t, env.client.copies, 1)
	assert.Nil(t, env.client.copies[0].Caption)
	assert.Empty(t, env.scheduler.tasks)
}

func TestDeliverCustomCaptionForDocuments(t *testing.T) {
	env := newDeliveryEnv(t)
	env.opts.Texts.CustomCaption = "{filename} | {previouscaption} | {file_size}"
	_, err := env.files.Put(context.Background(), &model.FileRecord{
		ID: 20, FileRef: "20", Category: model.CategoryMovie,
		Caption: strPtr("orig"), FileName: "a&b.pdf", FileSize: 42, IsDocument: true,
	})
	require.NoError(t, err)
	putFiles(t, env.files, model.CategoryMovie, 21)

	require.NoError(t, env.start(t, linkcodec.Single(20)))
	require.NoError(t, env.start(t, linkcodec.Single(21)))

	require.Len(t, env.client.copies, 2)
	assert.Equal(t, "a&amp;b.pdf | orig | 42", *env.client.copies[0].Caption)
	assert.Nil(t, env.client.copies[1].Caption, "non-documents keep their own caption")
}

type failingSettings struct{}

var errStoreDown = errors.New("store down")

func (failingSettings) Get(context.Context, string, interface{}) (bool, error) {
	return false, errStoreDown
}
func (failingSettings) Set(context.Context, string, interface{}) error { return errStoreDown }
func (failingSettings) All(context.Context) (map[string]json.RawMessage, error) {
	return nil, errStoreDown
}

func TestDeliverSettingsFailureRepliesWithGenericError(t *testing.T) {
	env := newDeliveryEnv(t)
	env.settings = NewSettingsService(failingSettings{}, 25200)
	putFiles(t, env.files, model.CategoryShort, 10)

	err := env.start(t, linkcodec.Single(10))
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, []string{textFileError}, env.client.textsTo(userChat))
	assert.Empty(t, env.client.copies)
}

func TestIngestThenDeliverThenAutoDelete(t *testing.T) {
	env := newDeliveryEnv(t)
	timers := &manualTimers{}
	sched := lifecycle.NewScheduler(NewChatDeleter(env.client), "deleted", lifecycle.WithAfterFunc(timers.AfterFunc))

	ingest := NewIngestService(env.client, env.files, IngestOptions{Channels: env.opts.Channels}, env.sleeper.Sleep)
	require.NoError(t, ingest.HandleChannelPost(context.Background(), &telegram.Message{ID: 77, ChatID: shortChannel, Caption: "clip", HasMedia: true}))

	reply := env.client.lastText()
	assert.Equal(t, shortChannel, reply.ChatID)
	assert.Contains(t, reply.Text, linkcodec.DeepLink(botName, linkcodec.Single(77)))

	gate := NewSubscriptionService(env.client, env.settings, nil)
	svc := NewDeliveryService(env.client, env.files, gate, env.settings, sched, env.opts, env.sleeper.Sleep)
	require.NoError(t, svc.HandleStart(context.Background(), testUser, userChat, linkcodec.Single(77).Token()))
	require.Len(t, env.client.copies, 1)
	delivered := env.client.nextID
	assert.Equal(t, "clip\n\nDeleted in 7h 0s", *env.client.copies[0].Caption)
	assert.Equal(t, 1, sched.Pending())

	// 修改设置不影响已登记的任务
	require.NoError(t, env.settings.SetAutoDeleteTime(context.Background(), 0))
	assert.Equal(t, 1, sched.Pending())
	require.Len(t, timers.delays, 1)
	assert.Equal(t, 25200*time.Second, timers.delays[0])

	timers.fire(0)
	assert.Equal(t, []int{delivered}, env.client.deletes)
	assert.Equal(t, []string{"deleted"}, env.client.textsTo(userChat))
	assert.Equal(t, 0, sched.Pending())
}

type manualTimer struct{ stopped bool }

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// manualTimers 记录计时器回调，由测试手动触发。
type manualTimers struct {
	delays []time.Duration
	fns    []func()
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) lifecycle.Timer {
	m.delays = append(m.delays, d)
	m.fns = append(m.fns, f)
	return &manualTimer{}
}

func (m *manualTimers) fire(i int) { m.fns[i]() }
