package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// CaseStatus 车辆生命周期状态
type CaseStatus string

const (
	StatusTopTier   CaseStatus = "top_tier"  // 顶级认证项目
	StatusMidTier   CaseStatus = "mid_tier"  // 中级认证项目
	StatusCertified CaseStatus = "certified" // 普通认证
	StatusWholesale CaseStatus = "wholesale" // 批发处理
	StatusAsIs      CaseStatus = "as_is"     // 现状零售
)

// ValidStatus 校验状态是否属于枚举集合
func ValidStatus(s CaseStatus) bool {
	switch s {
	case StatusTopTier, StatusMidTier, StatusCertified, StatusWholesale, StatusAsIs:
		return true
	}
	return false
}

// 分析模式
const (
	ModeAudit     = "audit"     // 成本差异审计
	ModeAppraisal = "appraisal" // 收购评估
)

// TransitionType 状态变更分类
type TransitionType string

const (
	TransitionUpgrade   TransitionType = "upgrade"
	TransitionDowngrade TransitionType = "downgrade"
)

// Vehicle 车辆基本信息，作为 JSON 嵌入案件记录
type Vehicle struct {
	VIN        string `json:"vin"`
	Year       int    `json:"year"`
	Make       string `json:"make"`
	Model      string `json:"model"`
	Trim       string `json:"trim,omitempty"`
	OdometerKM int    `json:"odometer_km"`
	StockCode  string `json:"stock_code,omitempty"`
	Channel    string `json:"channel,omitempty"`
}

// Value 实现 driver.Valuer
func (v Vehicle) Value() (driver.Value, error) {
	return json.Marshal(v)
}

// Scan 实现 sql.Scanner
func (v *Vehicle) Scan(value interface{}) error {
	if value == nil {
		*v = Vehicle{}
		return nil
	}
	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	}
	return errors.New("unsupported type for Vehicle")
}

// Attachment 附件引用。Data 仅在送审 AI 时临时携带 base64 内容，
// 落盘后通过 URL 引用。
type Attachment struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url,omitempty"`
	Data     string `json:"data,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// InspectionData 检测录入数据，作为 JSON 嵌入案件记录
type InspectionData struct {
	ServiceNotes    string            `json:"service_notes"`
	ManagerNotes    string            `json:"manager_notes"`
	ServiceEstimate float64           `json:"service_estimate"`
	ManagerEstimate float64           `json:"manager_estimate"`
	TargetProgram   CaseStatus        `json:"target_program"`
	Flags           map[string]string `json:"flags,omitempty"`
	Attachments     []Attachment      `json:"attachments,omitempty"`
	AppraiserName   string            `json:"appraiser_name,omitempty"`
	TechnicianName  string            `json:"technician_name,omitempty"`
}

// Value 实现 driver.Valuer
func (d InspectionData) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan 实现 sql.Scanner
func (d *InspectionData) Scan(value interface{}) error {
	if value == nil {
		*d = InspectionData{}
		return nil
	}
	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, d)
	case string:
		return json.Unmarshal([]byte(data), d)
	}
	return errors.New("unsupported type for InspectionData")
}

// StatusTransition 单条状态变更记录
type StatusTransition struct {
	From CaseStatus     `json:"from"`
	To   CaseStatus     `json:"to"`
	At   time.Time      `json:"at"`
	Type TransitionType `json:"type"`
}

// StatusHistory 只追加的状态变更历史
type StatusHistory []StatusTransition

// Value 实现 driver.Valuer
func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		return json.Marshal(StatusHistory{})
	}
	return json.Marshal(h)
}

// Scan 实现 sql.Scanner
func (h *StatusHistory) Scan(value interface{}) error {
	if value == nil {
		*h = StatusHistory{}
		return nil
	}
	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, h)
	case string:
		return json.Unmarshal([]byte(data), h)
	}
	return errors.New("unsupported type for StatusHistory")
}

// InspectionCase 检测案件，系统的持久化核心记录。
// History 只追加，CurrentStatus 始终等于最后一条历史的 To。
type InspectionCase struct {
	ID            string         `json:"id" gorm:"primaryKey;size:32"`
	CreatedAt     time.Time      `json:"created_at"`
	Mode          string         `json:"mode" gorm:"size:16;index"`
	Vehicle       Vehicle        `json:"vehicle" gorm:"type:jsonb"`
	Data          InspectionData `json:"data" gorm:"type:jsonb"`
	Analysis      string         `json:"analysis" gorm:"type:text"`
	DetectedTotal *float64       `json:"detected_total,omitempty"`
	CurrentStatus CaseStatus     `json:"current_status" gorm:"size:16;index"`
	History       StatusHistory  `json:"history" gorm:"type:jsonb"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (InspectionCase) TableName() string {
	return "inspection_cases"
}
