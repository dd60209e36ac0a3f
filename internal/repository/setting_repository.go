package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"file-share-bot/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository 是键值形式的设置存储。值的形状由键决定，统一以 JSON 交换。
type SettingRepository interface {
	// Get 将 key 对应的值解码到 dst；键不存在时返回 false 且不报错。
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	All(ctx context.Context) (map[string]json.RawMessage, error)
}

type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository 创建一个新的 SettingRepository 实例。
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	var s model.Setting
	err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s.Value), dst); err != nil {
		return false, fmt.Errorf("failed to decode setting %s: %w", key, err)
	}
	return true, nil
}

func (r *settingRepository) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&model.Setting{Key: key, Value: string(data)}).Error
}

func (r *settingRepository) All(ctx context.Context) (map[string]json.RawMessage, error) {
	var rows []model.Setting
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, s := range rows {
		out[s.Key] = json.RawMessage(s.Value)
	}
	return out, nil
}
