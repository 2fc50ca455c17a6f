package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dealerkit/recon/internal/recon/entity"
)

// SQLStore 远端结构化记录存储，生产环境跑在 PostgreSQL 上。
// 查询与排序在服务端完成。
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore 创建远端存储
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Kind 返回后端类型
func (s *SQLStore) Kind() Kind {
	return KindRemote
}

// Ping 检查数据库连通性
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// DB 暴露底层连接，供迁移使用
func (s *SQLStore) DB() *gorm.DB {
	return s.db
}

// ListCases 按创建时间倒序返回全部案件
func (s *SQLStore) ListCases(ctx context.Context) ([]entity.InspectionCase, error) {
	var cases []entity.InspectionCase
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&cases).Error
	return cases, err
}

// GetCase 按 ID 获取案件
func (s *SQLStore) GetCase(ctx context.Context, id string) (*entity.InspectionCase, error) {
	var c entity.InspectionCase
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// SaveCase 按 ID upsert
func (s *SQLStore) SaveCase(ctx context.Context, c *entity.InspectionCase) error {
	c.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(c).Error
}

// DeleteCase 幂等删除案件
func (s *SQLStore) DeleteCase(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&entity.InspectionCase{}, "id = ?", id).Error
}

// ListStandards 返回全部标准文档
func (s *SQLStore) ListStandards(ctx context.Context) ([]entity.StandardDocument, error) {
	var docs []entity.StandardDocument
	err := s.db.WithContext(ctx).Order("type ASC").Find(&docs).Error
	return docs, err
}

// GetStandard 按类型获取标准文档
func (s *SQLStore) GetStandard(ctx context.Context, docType string) (*entity.StandardDocument, error) {
	var doc entity.StandardDocument
	if err := s.db.WithContext(ctx).First(&doc, "type = ?", docType).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// SaveStandard 按类型 upsert，保留原记录 ID
func (s *SQLStore) SaveStandard(ctx context.Context, doc *entity.StandardDocument) error {
	doc.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type"}},
			DoUpdates: clause.AssignmentColumns([]string{"file_name", "upload_date", "extracted_rules", "updated_at"}),
		}).
		Create(doc).Error
}

// DeleteStandard 幂等删除标准文档
func (s *SQLStore) DeleteStandard(ctx context.Context, docType string) error {
	return s.db.WithContext(ctx).Delete(&entity.StandardDocument{}, "type = ?", docType).Error
}

// ListAppraisers 返回全部评估师
func (s *SQLStore) ListAppraisers(ctx context.Context) ([]entity.Appraiser, error) {
	var appraisers []entity.Appraiser
	err := s.db.WithContext(ctx).Order("name ASC").Find(&appraisers).Error
	return appraisers, err
}

// SaveAppraiser 按 ID upsert
func (s *SQLStore) SaveAppraiser(ctx context.Context, a *entity.Appraiser) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(a).Error
}

// DeleteAppraiser 幂等删除评估师
func (s *SQLStore) DeleteAppraiser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&entity.Appraiser{}, "id = ?", id).Error
}

// ListTechnicians 返回全部技师
func (s *SQLStore) ListTechnicians(ctx context.Context) ([]entity.Technician, error) {
	var techs []entity.Technician
	err := s.db.WithContext(ctx).Order("name ASC").Find(&techs).Error
	return techs, err
}

// SaveTechnician 按 ID upsert
func (s *SQLStore) SaveTechnician(ctx context.Context, tech *entity.Technician) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(tech).Error
}

// DeleteTechnician 幂等删除技师
func (s *SQLStore) DeleteTechnician(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&entity.Technician{}, "id = ?", id).Error
}

// GetSetting 获取设置项
func (s *SQLStore) GetSetting(ctx context.Context, key string) (string, error) {
	var setting entity.Setting
	if err := s.db.WithContext(ctx).First(&setting, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return setting.Value, nil
}

// PutSetting 写入设置项
func (s *SQLStore) PutSetting(ctx context.Context, key, value string) error {
	setting := entity.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).
		Create(&setting).Error
}
