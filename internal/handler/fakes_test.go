package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"file-share-bot/internal/model"
	"file-share-bot/internal/service"
	"file-share-bot/pkg/tasks"
	"file-share-bot/pkg/telegram"
)

type fakeClient struct {
	mu       sync.Mutex
	texts    []telegram.TextMessage
	edits    []string
	deletes  []int
	answered []string
}

func (c *fakeClient) Username() string { return "share_bot" }
func (c *fakeClient) SelfID() int64    { return 1 }
func (c *fakeClient) SendText(_ context.Context, msg telegram.TextMessage) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, msg)
	return len(c.texts), nil
}
func (c *fakeClient) SendPhoto(context.Context, telegram.PhotoMessage) (int, error) { return 1, nil }
func (c *fakeClient) EditText(_ context.Context, _ int64, _ int, text string, _ telegram.Keyboard) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, text)
	return nil
}
func (c *fakeClient) CopyMessage(context.Context, telegram.CopyRequest) (int, error) { return 1, nil }
func (c *fakeClient) ForwardMessage(context.Context, int64, int64, int) (int, error) {
	return 1, nil
}
func (c *fakeClient) DeleteMessage(_ context.Context, _ int64, id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, id)
	return nil
}
func (c *fakeClient) AnswerCallback(_ context.Context, id, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answered = append(c.answered, id)
	return nil
}
func (c *fakeClient) GetChat(context.Context, int64) (telegram.ChatInfo, error) {
	return telegram.ChatInfo{}, errors.New("not implemented")
}
func (c *fakeClient) GetMemberStatus(context.Context, int64, int64) (telegram.MemberStatus, error) {
	return "", telegram.ErrNotParticipant
}
func (c *fakeClient) ExportInviteLink(context.Context, int64) (string, error) { return "", nil }

func (c *fakeClient) lastText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.texts) == 0 {
		return ""
	}
	return c.texts[len(c.texts)-1].Text
}

// recorder 记录各个服务收到的调用。
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeUsers struct{ rec *recorder }

func (f fakeUsers) Register(_ context.Context, u telegram.User) error {
	f.rec.add("register")
	return nil
}
func (f fakeUsers) Welcome(context.Context, telegram.User, int64) error {
	f.rec.add("welcome")
	return nil
}
func (f fakeUsers) HandleCallback(_ context.Context, cb *telegram.Callback) (bool, error) {
	switch cb.Data {
	case service.CallbackAbout, service.CallbackHelp, service.CallbackStart:
		f.rec.add("user-callback:" + cb.Data)
		return true, nil
	}
	return false, nil
}

type fakeDelivery struct{ rec *recorder }

func (f fakeDelivery) HandleStart(_ context.Context, _ telegram.User, _ int64, payload string) error {
	f.rec.add("deliver:" + payload)
	return nil
}

type fakeIngest struct{ rec *recorder }

func (f fakeIngest) HandleChannelPost(context.Context, *telegram.Message) error {
	f.rec.add("channel-post")
	return nil
}
func (f fakeIngest) HandleDirectUpload(context.Context, *telegram.Message) error {
	f.rec.add("direct-upload")
	return nil
}

type fakeLinks struct {
	rec    *recorder
	active bool
}

func (f *fakeLinks) StartGenLink(context.Context, int64, int64) error {
	f.rec.add("genlink")
	f.active = true
	return nil
}
func (f *fakeLinks) StartBatch(context.Context, int64, int64) error {
	f.rec.add("batch")
	f.active = true
	return nil
}
func (f *fakeLinks) HandleForward(context.Context, int64, *telegram.Message) (bool, error) {
	if !f.active {
		return false, nil
	}
	f.rec.add("forward")
	return true, nil
}
func (f *fakeLinks) Cancel(context.Context, int64) (bool, error) {
	was := f.active
	f.active = false
	return was, nil
}

type fakeBroadcast struct{ rec *recorder }

func (f fakeBroadcast) Start(_ context.Context, _, _ int64, mode tasks.BroadcastMode, _ *telegram.Message) (string, error) {
	f.rec.add("broadcast:" + string(mode))
	return "task", nil
}
func (f fakeBroadcast) Process(context.Context, tasks.BroadcastTask) error { return nil }

// fakeAdmin 是内存中的 AdminService。
type fakeAdmin struct {
	mu       sync.Mutex
	channels []int64
	secs     int
	files    map[int]*model.FileView
	notAdmin map[int64]bool
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{secs: 25200, files: map[int]*model.FileView{}, notAdmin: map[int64]bool{}}
}

func (f *fakeAdmin) Stats(context.Context) (service.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return service.Stats{Users: 3, Files: int64(len(f.files)), ForceSubChannels: len(f.channels), AutoDeleteTime: f.secs, AutoDeleteReadable: service.HumanDuration(f.secs)}, nil
}
func (f *fakeAdmin) Settings(context.Context) (map[string]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	secs, _ := json.Marshal(f.secs)
	return map[string]json.RawMessage{model.SettingAutoDeleteTime: secs}, nil
}
func (f *fakeAdmin) ForceSubChannels(context.Context) ([]service.ChannelDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]service.ChannelDetail, 0, len(f.channels))
	for _, id := range f.channels {
		out = append(out, service.ChannelDetail{ID: id, Title: "Chan"})
	}
	return out, nil
}
func (f *fakeAdmin) AddForceSubChannel(_ context.Context, id int64) (service.ChannelDetail, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := service.ChannelDetail{ID: id, Title: "Chan"}
	if f.notAdmin[id] {
		return d, false, service.ErrBotNotAdmin
	}
	for _, ch := range f.channels {
		if ch == id {
			return d, false, nil
		}
	}
	f.channels = append(f.channels, id)
	return d, true, nil
}
func (f *fakeAdmin) RemoveForceSubChannel(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ch := range f.channels {
		if ch == id {
			f.channels = append(f.channels[:i], f.channels[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
func (f *fakeAdmin) AutoDeleteTime(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.secs, nil
}
func (f *fakeAdmin) SetAutoDeleteTime(_ context.Context, secs int) error {
	if secs < 0 {
		return service.ErrInvalidInput
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secs = secs
	return nil
}
func (f *fakeAdmin) GetFile(_ context.Context, id int) (*model.FileView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.files[id]
	if !ok {
		return nil, service.ErrFileNotFound
	}
	return v, nil
}
func (f *fakeAdmin) DeleteFile(_ context.Context, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[id]
	delete(f.files, id)
	return ok, nil
}
func (f *fakeAdmin) CreateLink(first, last int) (string, error) {
	switch {
	case first <= 0:
		return "", service.ErrInvalidInput
	case last != 0 && last < first:
		return "", service.ErrBatchOrder
	}
	return "https://t.me/share_bot?start=x", nil
}

type fakeDecoder struct {
	upd telegram.Update
	err error
}

func (d fakeDecoder) DecodeWebhook(*http.Request) (telegram.Update, bool, error) {
	if d.err != nil {
		return telegram.Update{}, false, d.err
	}
	return d.upd, true, nil
}
