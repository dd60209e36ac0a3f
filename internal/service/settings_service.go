package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"file-share-bot/internal/model"
	"file-share-bot/internal/repository"
)

// SettingsService 在设置存储之上提供带默认值的读取，以及强制订阅频道列表的增删。
type SettingsService interface {
	// ForceSubChannels 返回持久化的强制订阅频道（不含静态配置的频道）。
	ForceSubChannels(ctx context.Context) ([]int64, error)
	// AddForceSubChannel 返回列表是否确实发生了变化。
	AddForceSubChannel(ctx context.Context, channelID int64) (bool, error)
	RemoveForceSubChannel(ctx context.Context, channelID int64) (bool, error)
	// AutoDeleteTime 返回自动删除秒数；存储中没有该键时返回编译期默认值。
	AutoDeleteTime(ctx context.Context) (int, error)
	SetAutoDeleteTime(ctx context.Context, seconds int) error
	All(ctx context.Context) (map[string]json.RawMessage, error)
}

type settingsService struct {
	repo              repository.SettingRepository
	defaultAutoDelete int

	// 频道列表的读-改-写在进程内串行化。
	mu sync.Mutex
}

// NewSettingsService 创建一个新的 SettingsService 实例。
func NewSettingsService(repo repository.SettingRepository, defaultAutoDelete int) SettingsService {
	return &settingsService{repo: repo, defaultAutoDelete: defaultAutoDelete}
}

func (s *settingsService) ForceSubChannels(ctx context.Context) ([]int64, error) {
	var channels []int64
	if _, err := s.repo.Get(ctx, model.SettingForceSubChannels, &channels); err != nil {
		return nil, fmt.Errorf("failed to load force-sub channels: %w", err)
	}
	return channels, nil
}

func (s *settingsService) AddForceSubChannel(ctx context.Context, channelID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels, err := s.ForceSubChannels(ctx)
	if err != nil {
		return false, err
	}
	for _, id := range channels {
		if id == channelID {
			return false, nil
		}
	}
	channels = append(channels, channelID)
	if err := s.repo.Set(ctx, model.SettingForceSubChannels, channels); err != nil {
		return false, fmt.Errorf("failed to save force-sub channels: %w", err)
	}
	return true, nil
}

func (s *settingsService) RemoveForceSubChannel(ctx context.Context, channelID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels, err := s.ForceSubChannels(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]int64, 0, len(channels))
	for _, id := range channels {
		if id != channelID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(channels) {
		return false, nil
	}
	if err := s.repo.Set(ctx, model.SettingForceSubChannels, kept); err != nil {
		return false, fmt.Errorf("failed to save force-sub channels: %w", err)
	}
	return true, nil
}

func (s *settingsService) AutoDeleteTime(ctx context.Context) (int, error) {
	var secs int
	found, err := s.repo.Get(ctx, model.SettingAutoDeleteTime, &secs)
	if err != nil {
		return s.defaultAutoDelete, fmt.Errorf("failed to load auto-delete time: %w", err)
	}
	if !found {
		return s.defaultAutoDelete, nil
	}
	return secs, nil
}

// SetAutoDeleteTime 持久化新的自动删除秒数，0 表示关闭；已登记的删除任务不受影响。
func (s *settingsService) SetAutoDeleteTime(ctx context.Context, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: auto-delete time must be 0 or positive", ErrInvalidInput)
	}
	return s.repo.Set(ctx, model.SettingAutoDeleteTime, seconds)
}

func (s *settingsService) All(ctx context.Context) (map[string]json.RawMessage, error) {
	return s.repo.All(ctx)
}
