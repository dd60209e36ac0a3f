// Package telegram 定义了机器人与消息平台交互所需的能力接口，以及基于
// go-telegram-bot-api 的实现。业务层只依赖 Client 接口。
package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotParticipant 表示用户不是频道成员。
	ErrNotParticipant = errors.New("user is not a participant")
	// ErrBlocked 表示用户已屏蔽机器人。
	ErrBlocked = errors.New("bot was blocked by the user")
	// ErrUserDeactivated 表示用户账号已注销。
	ErrUserDeactivated = errors.New("user is deactivated")
)

// RateLimitError 表示平台限流，需要等待 RetryAfter 后再重试。
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// AsRateLimit 判断 err 是否为限流错误。
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// MemberStatus 是频道成员状态。
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// IsAdmin 判断状态是否具有管理员权限。
func (s MemberStatus) IsAdmin() bool {
	return s == StatusCreator || s == StatusAdministrator
}

// Button 是一个内联按钮，URL 与 Data 二选一。
type Button struct {
	Text string
	URL  string
	Data string
}

// Keyboard 是按行组织的内联键盘。
type Keyboard [][]Button

// Row 是构造单行键盘的便捷函数。
func Row(buttons ...Button) []Button {
	return buttons
}

// TextMessage 描述一条待发送的文本消息。
type TextMessage struct {
	ChatID           int64
	Text             string
	ReplyTo          int
	Keyboard         Keyboard
	DisablePreview   bool
	DisableParseMode bool
}

// PhotoMessage 描述一条待发送的图片消息，Photo 为 URL 或 file_id。
type PhotoMessage struct {
	ChatID   int64
	Photo    string
	Caption  string
	Keyboard Keyboard
}

// CopyRequest 描述一次消息复制。Keyboard 为空时保留原消息的按钮。
type CopyRequest struct {
	ToChatID       int64
	FromChatID     int64
	MessageID      int
	Caption        *string
	ProtectContent bool
	Keyboard       Keyboard
}

// ChatInfo 是频道/会话的元数据。
type ChatInfo struct {
	ID         int64
	Title      string
	InviteLink string
}

// Client 是机器人所需的全部平台能力。所有调用都可能阻塞，并可能返回 *RateLimitError。
type Client interface {
	// Username 返回机器人的用户名（不带 @）。
	Username() string
	// SelfID 返回机器人自身的用户 ID。
	SelfID() int64

	SendText(ctx context.Context, msg TextMessage) (int, error)
	SendPhoto(ctx context.Context, msg PhotoMessage) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, keyboard Keyboard) error
	CopyMessage(ctx context.Context, req CopyRequest) (int, error)
	ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error

	GetChat(ctx context.Context, chatID int64) (ChatInfo, error)
	GetMemberStatus(ctx context.Context, chatID, userID int64) (MemberStatus, error)
	ExportInviteLink(ctx context.Context, chatID int64) (string, error)
}
