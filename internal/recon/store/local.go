package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/dealerkit/recon/internal/recon/entity"
)

// 本地库 key 前缀，每条记录一个 JSON blob
const (
	keyPrefixCase       = "case:"
	keyPrefixStandard   = "standard:"
	keyPrefixAppraiser  = "appraiser:"
	keyPrefixTechnician = "technician:"
	keyPrefixSetting    = "setting:"
)

// kvRecord 本地键值记录
type kvRecord struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (kvRecord) TableName() string {
	return "kv_records"
}

// LocalStore 本地降级存储: sqlite 扁平键值库，
// 不做服务端过滤，全量读取后在内存中过滤排序。
type LocalStore struct {
	db *gorm.DB
}

// NewLocalStore 打开(或创建)本地库
func NewLocalStore(path string) (*LocalStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return &LocalStore{db: db}, nil
}

// Kind 返回后端类型
func (s *LocalStore) Kind() Kind {
	return KindLocal
}

// Ping 检查本地库连通性
func (s *LocalStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// classifyWriteErr 将 sqlite 容量耗尽错误归为 ErrQuotaExceeded
func classifyWriteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_FULL") || strings.Contains(msg, "database or disk is full") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

func (s *LocalStore) put(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	rec := kvRecord{Key: key, Value: string(data), UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
	return classifyWriteErr(err)
}

func (s *LocalStore) get(ctx context.Context, key string, out interface{}) error {
	var rec kvRecord
	if err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal([]byte(rec.Value), out)
}

func (s *LocalStore) scan(ctx context.Context, prefix string) ([]kvRecord, error) {
	var recs []kvRecord
	err := s.db.WithContext(ctx).Where("key LIKE ?", prefix+"%").Find(&recs).Error
	return recs, err
}

func (s *LocalStore) delete(ctx context.Context, key string) error {
	// 删除不存在的 key 不是错误
	return s.db.WithContext(ctx).Delete(&kvRecord{}, "key = ?", key).Error
}

// ListCases 全量扫描后按创建时间倒序
func (s *LocalStore) ListCases(ctx context.Context) ([]entity.InspectionCase, error) {
	recs, err := s.scan(ctx, keyPrefixCase)
	if err != nil {
		return nil, err
	}
	cases := make([]entity.InspectionCase, 0, len(recs))
	for _, rec := range recs {
		var c entity.InspectionCase
		if err := json.Unmarshal([]byte(rec.Value), &c); err != nil {
			return nil, fmt.Errorf("decode case %s: %w", rec.Key, err)
		}
		cases = append(cases, c)
	}
	sort.Slice(cases, func(i, j int) bool {
		return cases[i].CreatedAt.After(cases[j].CreatedAt)
	})
	return cases, nil
}

// GetCase 按 ID 获取案件
func (s *LocalStore) GetCase(ctx context.Context, id string) (*entity.InspectionCase, error) {
	var c entity.InspectionCase
	if err := s.get(ctx, keyPrefixCase+id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCase 按 ID upsert
func (s *LocalStore) SaveCase(ctx context.Context, c *entity.InspectionCase) error {
	c.UpdatedAt = time.Now()
	return s.put(ctx, keyPrefixCase+c.ID, c)
}

// DeleteCase 幂等删除案件
func (s *LocalStore) DeleteCase(ctx context.Context, id string) error {
	return s.delete(ctx, keyPrefixCase+id)
}

// ListStandards 返回全部标准文档
func (s *LocalStore) ListStandards(ctx context.Context) ([]entity.StandardDocument, error) {
	recs, err := s.scan(ctx, keyPrefixStandard)
	if err != nil {
		return nil, err
	}
	docs := make([]entity.StandardDocument, 0, len(recs))
	for _, rec := range recs {
		var doc entity.StandardDocument
		if err := json.Unmarshal([]byte(rec.Value), &doc); err != nil {
			return nil, fmt.Errorf("decode standard %s: %w", rec.Key, err)
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Type < docs[j].Type })
	return docs, nil
}

// GetStandard 按类型获取标准文档
func (s *LocalStore) GetStandard(ctx context.Context, docType string) (*entity.StandardDocument, error) {
	var doc entity.StandardDocument
	if err := s.get(ctx, keyPrefixStandard+docType, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SaveStandard 按类型 upsert，key 即类型，天然每类型一份
func (s *LocalStore) SaveStandard(ctx context.Context, doc *entity.StandardDocument) error {
	doc.UpdatedAt = time.Now()
	return s.put(ctx, keyPrefixStandard+doc.Type, doc)
}

// DeleteStandard 幂等删除标准文档
func (s *LocalStore) DeleteStandard(ctx context.Context, docType string) error {
	return s.delete(ctx, keyPrefixStandard+docType)
}

// ListAppraisers 返回全部评估师
func (s *LocalStore) ListAppraisers(ctx context.Context) ([]entity.Appraiser, error) {
	recs, err := s.scan(ctx, keyPrefixAppraiser)
	if err != nil {
		return nil, err
	}
	appraisers := make([]entity.Appraiser, 0, len(recs))
	for _, rec := range recs {
		var a entity.Appraiser
		if err := json.Unmarshal([]byte(rec.Value), &a); err != nil {
			return nil, fmt.Errorf("decode appraiser %s: %w", rec.Key, err)
		}
		appraisers = append(appraisers, a)
	}
	sort.Slice(appraisers, func(i, j int) bool { return appraisers[i].Name < appraisers[j].Name })
	return appraisers, nil
}

// SaveAppraiser 按 ID upsert
func (s *LocalStore) SaveAppraiser(ctx context.Context, a *entity.Appraiser) error {
	return s.put(ctx, keyPrefixAppraiser+a.ID, a)
}

// DeleteAppraiser 幂等删除评估师
func (s *LocalStore) DeleteAppraiser(ctx context.Context, id string) error {
	return s.delete(ctx, keyPrefixAppraiser+id)
}

// ListTechnicians 返回全部技师
func (s *LocalStore) ListTechnicians(ctx context.Context) ([]entity.Technician, error) {
	recs, err := s.scan(ctx, keyPrefixTechnician)
	if err != nil {
		return nil, err
	}
	techs := make([]entity.Technician, 0, len(recs))
	for _, rec := range recs {
		var tech entity.Technician
		if err := json.Unmarshal([]byte(rec.Value), &tech); err != nil {
			return nil, fmt.Errorf("decode technician %s: %w", rec.Key, err)
		}
		techs = append(techs, tech)
	}
	sort.Slice(techs, func(i, j int) bool { return techs[i].Name < techs[j].Name })
	return techs, nil
}

// SaveTechnician 按 ID upsert
func (s *LocalStore) SaveTechnician(ctx context.Context, tech *entity.Technician) error {
	return s.put(ctx, keyPrefixTechnician+tech.ID, tech)
}

// DeleteTechnician 幂等删除技师
func (s *LocalStore) DeleteTechnician(ctx context.Context, id string) error {
	return s.delete(ctx, keyPrefixTechnician+id)
}

// GetSetting 获取设置项
func (s *LocalStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.get(ctx, keyPrefixSetting+key, &value); err != nil {
		return "", err
	}
	return value, nil
}

// PutSetting 写入设置项
func (s *LocalStore) PutSetting(ctx context.Context, key, value string) error {
	return s.put(ctx, keyPrefixSetting+key, value)
}
