package entity

import "time"

// Appraiser 收购评估师
type Appraiser struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:100"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Appraiser) TableName() string {
	return "appraisers"
}

// Technician 维修技师，TechNumber 为车间工号
type Technician struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	Name       string    `json:"name" gorm:"size:100"`
	TechNumber string    `json:"tech_number" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 指定表名
func (Technician) TableName() string {
	return "technicians"
}
