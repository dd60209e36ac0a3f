// Package model 定义了与数据库表 / 集合对应的 Go 结构体。
package model

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// Category 是文件类别，只有 short 与 movie 两种取值。
type Category string

const (
	// CategoryShort 的投递副本会被定时删除。
	CategoryShort Category = "short"
	// CategoryMovie 的投递副本永久保留。
	CategoryMovie Category = "movie"
)

// ParseCategory 将字符串解析为 Category，未知取值返回错误。
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryShort, CategoryMovie:
		return c, nil
	}
	return "", fmt.Errorf("unknown file category %q", s)
}

// AutoDeletes 判断该类别的投递是否受自动删除约束。
func (c Category) AutoDeletes() bool {
	switch c {
	case CategoryShort:
		return true
	case CategoryMovie:
		return false
	}
	panic(fmt.Sprintf("unhandled category %q", string(c)))
}

// FileRecord 对应 'files' 表，一条记录代表存储频道中的一条消息。
// ID 直接使用频道消息 ID 作为主键，不使用自增代理键。
type FileRecord struct {
	ID int `gorm:"primaryKey;autoIncrement:false" json:"id" bson:"_id"`
	// FileRef 目前与 ID 相同，为将来更丰富的引用保留。
	FileRef  FileRef  `gorm:"type:varchar(64);not null" json:"fileRef" bson:"file_ref"`
	Category Category `gorm:"type:varchar(16);not null;index" json:"category" bson:"category"`

	// 以下字段是登记时对频道消息的快照，投递时用于生成标题。
	// Caption 是 HTML 格式的原说明（格式实体已渲染）；nil 表示登记时没有记录，
	// 旧数据都是这种情况，投递时应保留频道里的原说明。
	Caption    *string `gorm:"type:text" json:"caption,omitempty" bson:"caption,omitempty"`
	FileName   string  `gorm:"type:varchar(255)" json:"fileName,omitempty" bson:"file_name,omitempty"`
	FileSize   int64   `json:"fileSize,omitempty" bson:"file_size,omitempty"`
	IsDocument bool    `gorm:"not null;default:false" json:"isDocument" bson:"is_document"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt" bson:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (FileRecord) TableName() string {
	return "files"
}

// FileRef 是文件引用。旧版数据把它存成整数消息 ID，解码时统一转成字符串。
type FileRef string

// UnmarshalBSONValue 接受字符串、int32、int64 与整数值的 double。
func (r *FileRef) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	v := bsoncore.Value{Type: t, Data: data}
	switch t {
	case bsontype.String:
		if s, ok := v.StringValueOK(); ok {
			*r = FileRef(s)
			return nil
		}
	case bsontype.Int32:
		if n, ok := v.Int32OK(); ok {
			*r = FileRef(strconv.FormatInt(int64(n), 10))
			return nil
		}
	case bsontype.Int64:
		if n, ok := v.Int64OK(); ok {
			*r = FileRef(strconv.FormatInt(n, 10))
			return nil
		}
	case bsontype.Double:
		if f, ok := v.DoubleOK(); ok && f == math.Trunc(f) {
			*r = FileRef(strconv.FormatInt(int64(f), 10))
			return nil
		}
	case bsontype.Null, bsontype.Undefined:
		*r = ""
		return nil
	}
	return fmt.Errorf("cannot decode file_ref from bson %s", t)
}

// FileView 是管理 API 返回的文件记录视图。
type FileView struct {
	ID        int       `json:"id"`
	Category  Category  `json:"category"`
	FileName  string    `json:"fileName,omitempty"`
	FileSize  int64     `json:"fileSize,omitempty"`
	Link      string    `json:"link"`
	CreatedAt LocalTime `json:"createdAt"`
}
