package service

import (
	"context"
	"fmt"
	"time"

	"file-share-bot/pkg/log"
	"file-share-bot/pkg/telegram"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SubscriptionService 是强制订阅检查。
type SubscriptionService interface {
	// Check 返回用户是否加入了全部频道，以及尚未加入的频道（按配置顺序）。
	// 任何不确定的情况都视为未加入。
	Check(ctx context.Context, userID int64) (bool, []int64, error)
	// JoinButtons 为未加入的频道生成加入按钮，每个频道一行。
	JoinButtons(ctx context.Context, channels []int64) telegram.Keyboard
}

const (
	inviteCacheSize = 256
	inviteCacheTTL  = time.Hour
)

type inviteLink struct {
	title string
	url   string
}

type subscriptionService struct {
	client   telegram.Client
	settings SettingsService
	static   []int64

	// 只缓存邀请链接，成员状态每次都实时查询。
	invites *expirable.LRU[int64, inviteLink]
}

// NewSubscriptionService 创建一个新的 SubscriptionService 实例。static 是配置文件中的频道。
func NewSubscriptionService(client telegram.Client, settings SettingsService, static []int64) SubscriptionService {
	return &subscriptionService{
		client:   client,
		settings: settings,
		static:   static,
		invites:  expirable.NewLRU[int64, inviteLink](inviteCacheSize, nil, inviteCacheTTL),
	}
}

func (s *subscriptionService) channels(ctx context.Context) ([]int64, error) {
	dynamic, err := s.settings.ForceSubChannels(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(s.static)+len(dynamic))
	var out []int64
	for _, list := range [][]int64{s.static, dynamic} {
		for _, id := range list {
			if id == 0 {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *subscriptionService) Check(ctx context.Context, userID int64) (bool, []int64, error) {
	channels, err := s.channels(ctx)
	if err != nil {
		return false, nil, err
	}
	var missing []int64
	for _, ch := range channels {
		if !s.isMember(ctx, ch, userID) {
			missing = append(missing, ch)
		}
	}
	return len(missing) == 0, missing, nil
}

func (s *subscriptionService) isMember(ctx context.Context, channelID, userID int64) bool {
	status, err := s.client.GetMemberStatus(ctx, channelID, userID)
	if err != nil {
		log.Warnw("membership lookup failed, treating as not joined", "channel", channelID, "user", userID, "error", err)
		return false
	}
	switch status {
	case telegram.StatusLeft, telegram.StatusKicked:
		return false
	}
	return true
}

func (s *subscriptionService) JoinButtons(ctx context.Context, channels []int64) telegram.Keyboard {
	var kb telegram.Keyboard
	for _, ch := range channels {
		link, err := s.invite(ctx, ch)
		if err != nil {
			log.Errorw("failed to resolve invite link", "channel", ch, "error", err)
			continue
		}
		kb = append(kb, telegram.Row(telegram.Button{Text: "📢 Join " + link.title, URL: link.url}))
	}
	return kb
}

func (s *subscriptionService) invite(ctx context.Context, channelID int64) (inviteLink, error) {
	if link, ok := s.invites.Get(channelID); ok {
		return link, nil
	}
	chat, err := s.client.GetChat(ctx, channelID)
	if err != nil {
		return inviteLink{}, fmt.Errorf("get chat: %w", err)
	}
	url := chat.InviteLink
	if url == "" {
		if url, err = s.client.ExportInviteLink(ctx, channelID); err != nil {
			return inviteLink{}, fmt.Errorf("export invite link: %w", err)
		}
	}
	link := inviteLink{title: chat.Title, url: url}
	s.invites.Add(channelID, link)
	return link, nil
}
