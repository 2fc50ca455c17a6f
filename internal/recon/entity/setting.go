package entity

import "time"

// 系统设置键
const (
	SettingKeyBrand = "dealership_brand"
)

// Setting 键值型系统设置
type Setting struct {
	Key       string    `json:"key" gorm:"primaryKey;size:64"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Setting) TableName() string {
	return "settings"
}
