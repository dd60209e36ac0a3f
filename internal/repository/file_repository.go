package repository

import (
	"context"
	"errors"

	"file-share-bot/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FileRepository 是文件注册表，以存储频道消息 ID 为键。
type FileRepository interface {
	// Put 插入记录；ID 已存在时不覆盖，返回 false。
	Put(ctx context.Context, rec *model.FileRecord) (bool, error)
	Get(ctx context.Context, id int) (*model.FileRecord, error)
	Exists(ctx context.Context, id int) (bool, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id int) (bool, error)
}

// fileRepository 是 FileRepository 接口的 GORM 实现。
type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建一个新的 FileRepository 实例。
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Put(ctx context.Context, rec *model.FileRecord) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *fileRepository) Get(ctx context.Context, id int) (*model.FileRecord, error) {
	var rec model.FileRecord
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *fileRepository) Exists(ctx context.Context, id int) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.FileRecord{}).Where("id = ?", id).Limit(1).Count(&n).Error
	return n > 0, err
}

func (r *fileRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.FileRecord{}).Count(&n).Error
	return n, err
}

// Delete 删除记录，返回是否确实删除了一行。
func (r *fileRepository) Delete(ctx context.Context, id int) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.FileRecord{}, id)
	return res.RowsAffected > 0, res.Error
}
