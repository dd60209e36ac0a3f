package repository

import (
	"context"

	"file-share-bot/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository 接口定义了机器人用户的持久化操作。
type UserRepository interface {
	// Upsert 是幂等的，重复调用只刷新显示信息。
	Upsert(ctx context.Context, user *model.BotUser) error
	Exists(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id int64) error
	// Each 依次遍历所有用户，fn 返回错误时停止。
	Each(ctx context.Context, fn func(model.BotUser) error) error
}

const userScanBatch = 500

// userRepository 是 UserRepository 接口的 GORM 实现。
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Upsert(ctx context.Context, user *model.BotUser) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "username"}),
	}).Create(user).Error
}

func (r *userRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.BotUser{}).Where("id = ?", id).Limit(1).Count(&n).Error
	return n > 0, err
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.BotUser{}).Count(&n).Error
	return n, err
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.BotUser{}, id).Error
}

// Each 按主键分批读取，避免一次性把全部用户加载到内存。
func (r *userRepository) Each(ctx context.Context, fn func(model.BotUser) error) error {
	var batch []model.BotUser
	var fnErr error
	res := r.db.WithContext(ctx).FindInBatches(&batch, userScanBatch, func(tx *gorm.DB, _ int) error {
		for _, u := range batch {
			if fnErr = fn(u); fnErr != nil {
				return fnErr
			}
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	return res.Error
}
