package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"file-share-bot/internal/model"
	"file-share-bot/internal/repository"
	"file-share-bot/pkg/linkcodec"
	"file-share-bot/pkg/log"
	"file-share-bot/pkg/telegram"
)

// ErrBotNotAdmin 表示机器人不是目标频道的管理员，无法检查成员。
var ErrBotNotAdmin = errors.New("bot is not an admin of the channel")

// Stats 是机器人的统计信息。
type Stats struct {
	Users              int64  `json:"users"`
	Files              int64  `json:"files"`
	ForceSubChannels   int    `json:"forceSubChannels"`
	AutoDeleteTime     int    `json:"autoDeleteTime"`
	AutoDeleteReadable string `json:"autoDeleteReadable"`
}

// ChannelDetail 是一个强制订阅频道的展示信息。Title 为空表示获取频道信息失败。
type ChannelDetail struct {
	ID         int64  `json:"id"`
	Title      string `json:"title,omitempty"`
	InviteLink string `json:"inviteLink,omitempty"`
}

// AdminService 接口定义了所有管理员相关的业务操作，供机器人管理面板和管理 API 共用。
type AdminService interface {
	Stats(ctx context.Context) (Stats, error)
	Settings(ctx context.Context) (map[string]json.RawMessage, error)

	ForceSubChannels(ctx context.Context) ([]ChannelDetail, error)
	// AddForceSubChannel 要求机器人是该频道的管理员。
	AddForceSubChannel(ctx context.Context, channelID int64) (ChannelDetail, bool, error)
	RemoveForceSubChannel(ctx context.Context, channelID int64) (bool, error)
	AutoDeleteTime(ctx context.Context) (int, error)
	SetAutoDeleteTime(ctx context.Context, seconds int) error

	GetFile(ctx context.Context, id int) (*model.FileView, error)
	DeleteFile(ctx context.Context, id int) (bool, error)
	// CreateLink 为单个 ID（last == 0 或 last == first）或区间生成深链接。
	CreateLink(first, last int) (string, error)
}

// adminService 是 AdminService 接口的实现。
type adminService struct {
	client     telegram.Client
	files      repository.FileRepository
	users      repository.UserRepository
	settings   SettingsService
	batchLimit int
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(client telegram.Client, files repository.FileRepository, users repository.UserRepository, settings SettingsService, batchLimit int) AdminService {
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &adminService{client: client, files: files, users: users, settings: settings, batchLimit: batchLimit}
}

func (s *adminService) Stats(ctx context.Context) (Stats, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}
	files, err := s.files.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count files: %w", err)
	}
	channels, err := s.settings.ForceSubChannels(ctx)
	if err != nil {
		return Stats{}, err
	}
	secs, err := s.settings.AutoDeleteTime(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Users:              users,
		Files:              files,
		ForceSubChannels:   len(channels),
		AutoDeleteTime:     secs,
		AutoDeleteReadable: HumanDuration(secs),
	}, nil
}

func (s *adminService) Settings(ctx context.Context) (map[string]json.RawMessage, error) {
	return s.settings.All(ctx)
}

func (s *adminService) ForceSubChannels(ctx context.Context) ([]ChannelDetail, error) {
	ids, err := s.settings.ForceSubChannels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ChannelDetail, 0, len(ids))
	for _, id := range ids {
		d := ChannelDetail{ID: id}
		if chat, err := s.client.GetChat(ctx, id); err != nil {
			log.Warnw("admin: unable to fetch channel info", "channel", id, "error", err)
		} else {
			d.Title, d.InviteLink = chat.Title, chat.InviteLink
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *adminService) AddForceSubChannel(ctx context.Context, channelID int64) (ChannelDetail, bool, error) {
	chat, err := s.client.GetChat(ctx, channelID)
	if err != nil {
		return ChannelDetail{}, false, fmt.Errorf("access channel %d: %w", channelID, err)
	}
	d := ChannelDetail{ID: channelID, Title: chat.Title, InviteLink: chat.InviteLink}
	status, err := s.client.GetMemberStatus(ctx, channelID, s.client.SelfID())
	if err != nil {
		return d, false, fmt.Errorf("check bot membership in %d: %w", channelID, err)
	}
	if !status.IsAdmin() {
		return d, false, ErrBotNotAdmin
	}
	added, err := s.settings.AddForceSubChannel(ctx, channelID)
	if err != nil {
		return d, false, err
	}
	return d, added, nil
}

func (s *adminService) RemoveForceSubChannel(ctx context.Context, channelID int64) (bool, error) {
	return s.settings.RemoveForceSubChannel(ctx, channelID)
}

func (s *adminService) AutoDeleteTime(ctx context.Context) (int, error) {
	return s.settings.AutoDeleteTime(ctx)
}

func (s *adminService) SetAutoDeleteTime(ctx context.Context, seconds int) error {
	return s.settings.SetAutoDeleteTime(ctx, seconds)
}

func (s *adminService) GetFile(ctx context.Context, id int) (*model.FileView, error) {
	rec, err := s.files.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &model.FileView{
		ID:        rec.ID,
		Category:  rec.Category,
		FileName:  rec.FileName,
		FileSize:  rec.FileSize,
		Link:      linkcodec.DeepLink(s.client.Username(), linkcodec.Single(rec.ID)),
		CreatedAt: model.LocalTime(rec.CreatedAt),
	}, nil
}

// DeleteFile 删除注册表中的记录，之后该文件的链接不再可用。
func (s *adminService) DeleteFile(ctx context.Context, id int) (bool, error) {
	return s.files.Delete(ctx, id)
}

func (s *adminService) CreateLink(first, last int) (string, error) {
	if first <= 0 {
		return "", fmt.Errorf("%w: message id must be positive", ErrInvalidInput)
	}
	if last == 0 || last == first {
		return linkcodec.DeepLink(s.client.Username(), linkcodec.Single(first)), nil
	}
	req := linkcodec.Range(first, last)
	if req.Last < req.First {
		return "", ErrBatchOrder
	}
	if req.Size() > s.batchLimit {
		return "", ErrBatchTooLarge
	}
	return linkcodec.DeepLink(s.client.Username(), req), nil
}
