package model

// 已知的设置键。
const (
	SettingForceSubChannels = "force_sub_channels"
	SettingAutoDeleteTime   = "auto_delete_time"
)

// Setting 对应 'settings' 表。Value 以 JSON 文本保存，形状由键决定。
type Setting struct {
	Key   string `gorm:"type:varchar(64);primaryKey" json:"key"`
	Value string `gorm:"type:text;not null" json:"value"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Setting) TableName() string {
	return "settings"
}
