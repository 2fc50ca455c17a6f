package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dealerkit/recon/internal/recon/entity"
	"github.com/dealerkit/recon/internal/recon/lifecycle"
	"github.com/dealerkit/recon/internal/recon/sse"
	"github.com/dealerkit/recon/internal/recon/store"
	"github.com/dealerkit/recon/internal/shared/vin"
)

// CaseService 检测案件服务
type CaseService struct {
	store  store.RecordStore
	vin    *vin.Client
	logger *zap.Logger
}

// NewCaseService 创建案件服务
func NewCaseService(s store.RecordStore, vinClient *vin.Client, logger *zap.Logger) *CaseService {
	return &CaseService{store: s, vin: vinClient, logger: logger}
}

// List 获取全部案件（创建时间倒序），读失败降级为空列表
func (s *CaseService) List(ctx context.Context) []entity.InspectionCase {
	cases, err := s.store.ListCases(ctx)
	if err != nil {
		s.logger.Warn("list cases failed", zap.Error(err))
		return []entity.InspectionCase{}
	}
	return cases
}

// Get 获取案件详情
func (s *CaseService) Get(ctx context.Context, id string) (*entity.InspectionCase, error) {
	return s.store.GetCase(ctx, id)
}

// UpdateCaseRequest 案件编辑请求，车辆与录入数据整体替换。
// 状态与历史不经此路径变更。
type UpdateCaseRequest struct {
	Vehicle *entity.Vehicle        `json:"vehicle"`
	Data    *entity.InspectionData `json:"data"`
}

// Update 编辑案件的车辆/录入数据。
// 车辆年份或里程的事后修改不回溯校验当前状态，
// 下一次显式状态变更时重新检查。
func (s *CaseService) Update(ctx context.Context, id string, req *UpdateCaseRequest) (*entity.InspectionCase, error) {
	c, err := s.store.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Vehicle != nil {
		c.Vehicle = *req.Vehicle
	}
	if req.Data != nil {
		c.Data = *req.Data
	}

	if err := s.store.SaveCase(ctx, c); err != nil {
		return nil, fmt.Errorf("save case: %w", err)
	}
	sse.PublishCaseUpdate(c.ID, "updated")
	return c, nil
}

// Delete 删除案件（幂等）
func (s *CaseService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteCase(ctx, id); err != nil {
		return err
	}
	sse.PublishCaseUpdate(id, "deleted")
	return nil
}

// UpdateStatus 对案件执行一次状态变更。
// 在副本上执行并先持久化，保存失败时原状态对外保持不变。
func (s *CaseService) UpdateStatus(ctx context.Context, id string, to entity.CaseStatus) (*entity.InspectionCase, error) {
	c, err := s.store.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *c
	updated.History = append(entity.StatusHistory{}, c.History...)

	entry, err := lifecycle.Transition(&updated, to, time.Now())
	if err != nil {
		return nil, err
	}
	if entry == nil {
		// 幂等空操作，不写库
		return c, nil
	}

	if err := s.store.SaveCase(ctx, &updated); err != nil {
		return nil, fmt.Errorf("persist status transition: %w", err)
	}
	sse.PublishCaseUpdate(id, "status_changed")
	return &updated, nil
}

// History 获取案件的状态变更历史
func (s *CaseService) History(ctx context.Context, id string) (entity.StatusHistory, error) {
	c, err := s.store.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.History == nil {
		return entity.StatusHistory{}, nil
	}
	return c.History, nil
}

// RecommendProgram 按车辆年份与里程返回最优可入项目，
// 录入界面在年份/里程变化时调用
func (s *CaseService) RecommendProgram(year, odometerKM int) entity.CaseStatus {
	ageYears := time.Now().Year() - year
	return lifecycle.BestEligible(ageYears, odometerKM)
}

// DecodeVIN 解码 VIN，失败返回 nil（静默约定）
func (s *CaseService) DecodeVIN(ctx context.Context, vinCode string) *vin.DecodedVehicle {
	return s.vin.Decode(ctx, vinCode)
}
