package model

import "time"

// BotUser 对应 'users' 表，记录与机器人交互过的用户。
type BotUser struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id" bson:"_id"`
	FirstName string    `gorm:"type:varchar(255)" json:"firstName" bson:"first_name,omitempty"`
	Username  string    `gorm:"type:varchar(64)" json:"username" bson:"username,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt" bson:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (BotUser) TableName() string {
	return "users"
}
