package entity

import "time"

// 标准文档类型，每种类型最多保留一份有效文档
const (
	DocTypeSafety          = "SAFETY"
	DocTypeCertifiedManual = "CERTIFIED_MANUAL"
	DocTypeMaintenance     = "MAINTENANCE"
	DocTypePolicy          = "POLICY"
)

// DocTypes 全部合法文档类型，按管理界面展示顺序排列
var DocTypes = []string{
	DocTypeSafety,
	DocTypeCertifiedManual,
	DocTypeMaintenance,
	DocTypePolicy,
}

// ValidDocType 校验文档类型
func ValidDocType(t string) bool {
	for _, dt := range DocTypes {
		if dt == t {
			return true
		}
	}
	return false
}

// StandardDocument 参考标准文档，按类型 upsert
type StandardDocument struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	Type           string    `json:"type" gorm:"size:32;uniqueIndex"`
	FileName       string    `json:"file_name" gorm:"size:255"`
	UploadDate     time.Time `json:"upload_date"`
	ExtractedRules string    `json:"extracted_rules" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (StandardDocument) TableName() string {
	return "standards"
}
