package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// User 是消息发送者。
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// Mention 返回 HTML 格式的用户提及。
func (u User) Mention() string {
	return `<a href="tg://user?id=` + itoa(u.ID) + `">` + htmlEscape(u.FirstName) + `</a>`
}

// Document 是文档类附件的元数据。
type Document struct {
	FileName string
	FileSize int64
}

// Message 是平台消息在本项目中的投影，只保留业务需要的字段。
type Message struct {
	ID       int
	ChatID   int64
	ChatType string
	From     *User
	Text     string
	Caption  string
	// CaptionHTML 是按格式实体渲染后的说明。
	CaptionHTML string
	Document    *Document
	// HasMedia 表示消息带有文档、视频或音频附件。
	HasMedia bool
	// Forwarded 表示任何来源的转发，包括用户与隐藏了身份的发送者。
	Forwarded            bool
	ForwardFromChatID    int64
	ForwardFromMessageID int
	ReplyTo              *Message
}

// IsPrivate 判断消息是否来自私聊。
func (m Message) IsPrivate() bool { return m.ChatType == "private" }

// IsForwarded 判断消息是否为转发，来源不限于频道。
func (m Message) IsForwarded() bool { return m.Forwarded || m.ForwardFromChatID != 0 }

// FormattedCaption 返回 HTML 格式的说明，没有渲染结果时退回转义后的纯文本。
func (m Message) FormattedCaption() string {
	if m.CaptionHTML != "" {
		return m.CaptionHTML
	}
	return htmlEscape(m.Caption)
}

// Command 返回 /command 的命令名（不含 / 与 @bot 后缀），非命令返回空串。
func (m Message) Command() string {
	if !strings.HasPrefix(m.Text, "/") {
		return ""
	}
	word, _, _ := strings.Cut(m.Text, " ")
	word = strings.TrimPrefix(word, "/")
	word, _, _ = strings.Cut(word, "@")
	return word
}

// CommandArgs 返回命令之后的参数部分。
func (m Message) CommandArgs() string {
	if m.Command() == "" {
		return ""
	}
	_, rest, _ := strings.Cut(m.Text, " ")
	return strings.TrimSpace(rest)
}

// Callback 是内联按钮回调。
type Callback struct {
	ID      string
	From    User
	Message *Message
	Data    string
}

// Update 是一次平台推送，三个字段至多一个非空。
type Update struct {
	Message     *Message
	ChannelPost *Message
	Callback    *Callback
}

// FromBotAPI 将 go-telegram-bot-api 的 Update 转换为本包类型；不关心的更新返回 false。
func FromBotAPI(u tgbotapi.Update) (Update, bool) {
	switch {
	case u.Message != nil:
		return Update{Message: convertMessage(u.Message)}, true
	case u.ChannelPost != nil:
		return Update{ChannelPost: convertMessage(u.ChannelPost)}, true
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		cb := &Callback{
			ID:   u.CallbackQuery.ID,
			From: convertUser(u.CallbackQuery.From),
			Data: u.CallbackQuery.Data,
		}
		if u.CallbackQuery.Message != nil {
			cb.Message = convertMessage(u.CallbackQuery.Message)
		}
		return Update{Callback: cb}, true
	}
	return Update{}, false
}

func convertUser(u *tgbotapi.User) User {
	return User{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Username: u.UserName}
}

func convertMessage(m *tgbotapi.Message) *Message {
	out := &Message{
		ID:                   m.MessageID,
		Text:                 m.Text,
		Caption:              m.Caption,
		CaptionHTML:          EntitiesHTML(m.Caption, m.CaptionEntities),
		ForwardFromMessageID: m.ForwardFromMessageID,
		Forwarded:            m.ForwardDate != 0 || m.ForwardFrom != nil || m.ForwardFromChat != nil || m.ForwardSenderName != "",
	}
	if m.Chat != nil {
		out.ChatID = m.Chat.ID
		out.ChatType = m.Chat.Type
	}
	if m.From != nil {
		u := convertUser(m.From)
		out.From = &u
	}
	if m.ForwardFromChat != nil {
		out.ForwardFromChatID = m.ForwardFromChat.ID
	}
	if m.Document != nil {
		out.Document = &Document{FileName: m.Document.FileName, FileSize: int64(m.Document.FileSize)}
	}
	out.HasMedia = m.Document != nil || m.Video != nil || m.Audio != nil
	if m.ReplyToMessage != nil {
		out.ReplyTo = convertMessage(m.ReplyToMessage)
	}
	return out
}
