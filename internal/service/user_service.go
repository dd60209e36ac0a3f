package service

import (
	"context"
	"fmt"

	"file-share-bot/internal/model"
	"file-share-bot/internal/repository"
	"file-share-bot/pkg/log"
	"file-share-bot/pkg/telegram"
)

const aboutText = "🤖 <b>About This Bot</b>\n\n" +
	"This bot can store files and generate shareable links.\n\n" +
	"📦 <b>Features:</b>\n" +
	"• Auto-delete for short videos (configurable)\n" +
	"• Permanent links for movies\n" +
	"• Multiple force subscribe channels\n" +
	"• Batch file sharing"

const helpText = "🆘 <b>Help</b>\n\n" +
	"<b>For Users:</b>\n" +
	"• Click on shared links to get files\n" +
	"• Join required channels to access files\n\n" +
	"<b>For Admins:</b>\n" +
	"• Send files to Short DB: Auto-delete\n" +
	"• Send files to Movie DB: Permanent\n" +
	"• Use /genlink for single links and /batch for batch links\n" +
	"• Use /settings for admin panel"

// 欢迎消息上的回调数据。
const (
	CallbackAbout = "about"
	CallbackHelp  = "help"
	CallbackStart = "start"
)

// UserService 接口定义了普通用户相关的业务操作：登记与欢迎流程。
type UserService interface {
	// Register 幂等地登记用户。
	Register(ctx context.Context, u telegram.User) error
	// Welcome 发送欢迎消息（可带图片）以及 About / Help 按钮。
	Welcome(ctx context.Context, u telegram.User, chatID int64) error
	// HandleCallback 处理 about / help / start 回调，其他回调返回 false。
	HandleCallback(ctx context.Context, cb *telegram.Callback) (bool, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	client telegram.Client
	users  repository.UserRepository
	texts  Texts
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(client telegram.Client, users repository.UserRepository, texts Texts) UserService {
	return &userService{client: client, users: users, texts: texts}
}

func (s *userService) Register(ctx context.Context, u telegram.User) error {
	err := s.users.Upsert(ctx, &model.BotUser{ID: u.ID, FirstName: u.FirstName, Username: u.Username})
	if err != nil {
		return fmt.Errorf("register user %d: %w", u.ID, err)
	}
	return nil
}

func welcomeKeyboard() telegram.Keyboard {
	return telegram.Keyboard{telegram.Row(
		telegram.Button{Text: "ℹ️ About", Data: CallbackAbout},
		telegram.Button{Text: "🆘 Help", Data: CallbackHelp},
	)}
}

func backKeyboard() telegram.Keyboard {
	return telegram.Keyboard{telegram.Row(telegram.Button{Text: "🔙 Back", Data: CallbackStart})}
}

func (s *userService) Welcome(ctx context.Context, u telegram.User, chatID int64) error {
	text := FormatUserText(s.texts.Start, u)
	var err error
	if s.texts.StartPic != "" {
		_, err = s.client.SendPhoto(ctx, telegram.PhotoMessage{ChatID: chatID, Photo: s.texts.StartPic, Caption: text, Keyboard: welcomeKeyboard()})
	} else {
		_, err = s.client.SendText(ctx, telegram.TextMessage{ChatID: chatID, Text: text, Keyboard: welcomeKeyboard(), DisablePreview: true})
	}
	return err
}

func (s *userService) HandleCallback(ctx context.Context, cb *telegram.Callback) (bool, error) {
	var text string
	var kb telegram.Keyboard
	switch cb.Data {
	case CallbackAbout:
		text, kb = aboutText, backKeyboard()
	case CallbackHelp:
		text, kb = helpText, backKeyboard()
	case CallbackStart:
		text, kb = FormatUserText(s.texts.Start, cb.From), welcomeKeyboard()
	default:
		return false, nil
	}
	if err := s.client.AnswerCallback(ctx, cb.ID, ""); err != nil {
		log.Warnw("failed to answer callback", "callback", cb.ID, "error", err)
	}
	if cb.Message == nil {
		return true, nil
	}
	err := s.client.EditText(ctx, cb.Message.ChatID, cb.Message.ID, text, kb)
	if err != nil {
		// 带图片的欢迎消息无法编辑为纯文本，改为发送新消息。
		_, err = s.client.SendText(ctx, telegram.TextMessage{ChatID: cb.Message.ChatID, Text: text, Keyboard: kb, DisablePreview: true})
	}
	return true, err
}
