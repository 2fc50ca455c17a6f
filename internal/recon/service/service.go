package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dealerkit/recon/internal/config"
	"github.com/dealerkit/recon/internal/recon/entity"
	"github.com/dealerkit/recon/internal/recon/sse"
	"github.com/dealerkit/recon/internal/recon/store"
	"github.com/dealerkit/recon/internal/shared/genai"
	"github.com/dealerkit/recon/internal/shared/vin"
)

// Services 服务集合
type Services struct {
	Auth      *AuthService
	Case      *CaseService
	Analysis  *AnalysisService
	Standard  *StandardService
	Personnel *PersonnelService
	Report    *ReportService
	Settings  *SettingsService
	Admin     *AdminService
}

// NewServices 创建服务集合。recordStore 为启动时选定的主存储，
// localStore 始终可用，远端模式下作为同步数据源。
func NewServices(recordStore store.RecordStore, localStore *store.LocalStore, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	var aiClient *genai.Client
	if cfg.GenAI.APIKey != "" {
		aiClient = genai.NewClient(cfg.GenAI.APIKey, cfg.GenAI.Model)
	}

	vinClient := vin.NewClient(logger)
	if cfg.VIN.BaseURL != "" {
		vinClient.BaseURL = cfg.VIN.BaseURL
	}

	caseSvc := NewCaseService(recordStore, vinClient, logger)

	return &Services{
		Auth:      NewAuthService(rdb, cfg),
		Case:      caseSvc,
		Analysis:  NewAnalysisService(recordStore, aiClient, logger),
		Standard:  NewStandardService(recordStore, aiClient, logger),
		Personnel: NewPersonnelService(recordStore, logger),
		Report:    NewReportService(recordStore, logger),
		Settings:  NewSettingsService(recordStore, cfg, logger),
		Admin:     NewAdminService(recordStore, localStore, rdb, logger),
	}
}

// generateID 生成32位记录ID
func generateID() string {
	return uuid.New().String()[:32]
}

// PersonnelService 人员名录服务
type PersonnelService struct {
	store  store.RecordStore
	logger *zap.Logger
}

// NewPersonnelService 创建人员名录服务
func NewPersonnelService(s store.RecordStore, logger *zap.Logger) *PersonnelService {
	return &PersonnelService{store: s, logger: logger}
}

// ListAppraisers 获取评估师列表，读失败降级为空列表
func (s *PersonnelService) ListAppraisers(ctx context.Context) []entity.Appraiser {
	appraisers, err := s.store.ListAppraisers(ctx)
	if err != nil {
		s.logger.Warn("list appraisers failed", zap.Error(err))
		return []entity.Appraiser{}
	}
	return appraisers
}

// CreateAppraiser 新增评估师
func (s *PersonnelService) CreateAppraiser(ctx context.Context, name string) (*entity.Appraiser, error) {
	a := &entity.Appraiser{ID: generateID(), Name: name}
	if err := s.store.SaveAppraiser(ctx, a); err != nil {
		return nil, fmt.Errorf("save appraiser: %w", err)
	}
	return a, nil
}

// DeleteAppraiser 删除评估师（幂等）
func (s *PersonnelService) DeleteAppraiser(ctx context.Context, id string) error {
	return s.store.DeleteAppraiser(ctx, id)
}

// ListTechnicians 获取技师列表，读失败降级为空列表
func (s *PersonnelService) ListTechnicians(ctx context.Context) []entity.Technician {
	techs, err := s.store.ListTechnicians(ctx)
	if err != nil {
		s.logger.Warn("list technicians failed", zap.Error(err))
		return []entity.Technician{}
	}
	return techs
}

// CreateTechnician 新增技师
func (s *PersonnelService) CreateTechnician(ctx context.Context, name, techNumber string) (*entity.Technician, error) {
	tech := &entity.Technician{ID: generateID(), Name: name, TechNumber: techNumber}
	if err := s.store.SaveTechnician(ctx, tech); err != nil {
		return nil, fmt.Errorf("save technician: %w", err)
	}
	return tech, nil
}

// DeleteTechnician 删除技师（幂等）
func (s *PersonnelService) DeleteTechnician(ctx context.Context, id string) error {
	return s.store.DeleteTechnician(ctx, id)
}

// SettingsService 系统设置服务
type SettingsService struct {
	store  store.RecordStore
	cfg    *config.Config
	logger *zap.Logger
}

// NewSettingsService 创建系统设置服务
func NewSettingsService(s store.RecordStore, cfg *config.Config, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: s, cfg: cfg, logger: logger}
}

// GetBrand 获取经销商品牌，未设置时回落到配置默认值
func (s *SettingsService) GetBrand(ctx context.Context) string {
	value, err := s.store.GetSetting(ctx, entity.SettingKeyBrand)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("read brand setting failed", zap.Error(err))
		}
		return s.cfg.Dealership.Brand
	}
	return value
}

// SetBrand 更新经销商品牌
func (s *SettingsService) SetBrand(ctx context.Context, brand string) error {
	if err := s.store.PutSetting(ctx, entity.SettingKeyBrand, brand); err != nil {
		return fmt.Errorf("save brand setting: %w", err)
	}
	return nil
}

// AdminService 后台管理服务: 同步与系统状态
type AdminService struct {
	store      store.RecordStore
	localStore *store.LocalStore
	rdb        *redis.Client
	logger     *zap.Logger
}

// NewAdminService 创建后台管理服务
func NewAdminService(s store.RecordStore, localStore *store.LocalStore, rdb *redis.Client, logger *zap.Logger) *AdminService {
	return &AdminService{store: s, localStore: localStore, rdb: rdb, logger: logger}
}

// ErrRemoteNotConfigured 主存储即本地库，无远端可同步
var ErrRemoteNotConfigured = errors.New("remote store not configured")

// Sync 将本地库全部记录重放到远端，逐条推送 SSE 进度
func (s *AdminService) Sync(ctx context.Context) (*store.SyncReport, error) {
	if s.store.Kind() != store.KindRemote {
		return nil, ErrRemoteNotConfigured
	}
	report, err := store.SyncLocalToCloud(ctx, s.localStore, s.store, func(kind string, done int) {
		sse.PublishSyncProgress(kind, done)
	})
	if err != nil {
		s.logger.Error("sync aborted", zap.Error(err), zap.Int("synced", report.Total))
		return report, err
	}
	s.logger.Info("sync completed", zap.Int("synced", report.Total))
	return report, nil
}

// SystemStatus 系统健康状态
type SystemStatus struct {
	Backend     store.Kind `json:"backend"`
	StoreOK     bool       `json:"store_ok"`
	RedisOK     *bool      `json:"redis_ok,omitempty"`
	Cases       int        `json:"cases"`
	Standards   int        `json:"standards"`
	Appraisers  int        `json:"appraisers"`
	Technicians int        `json:"technicians"`
}

// Status 汇总后端类型、连通性与各类记录数
func (s *AdminService) Status(ctx context.Context) *SystemStatus {
	status := &SystemStatus{Backend: s.store.Kind()}
	status.StoreOK = s.store.Ping(ctx) == nil

	if cases, err := s.store.ListCases(ctx); err == nil {
		status.Cases = len(cases)
	}
	if docs, err := s.store.ListStandards(ctx); err == nil {
		status.Standards = len(docs)
	}
	if appraisers, err := s.store.ListAppraisers(ctx); err == nil {
		status.Appraisers = len(appraisers)
	}
	if techs, err := s.store.ListTechnicians(ctx); err == nil {
		status.Technicians = len(techs)
	}

	if s.rdb != nil {
		ok := s.rdb.Ping(ctx).Err() == nil
		status.RedisOK = &ok
	}
	return status
}
