package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/dealerkit/recon/internal/recon/entity"
	"github.com/dealerkit/recon/internal/recon/lifecycle"
	"github.com/dealerkit/recon/internal/recon/service"
	"github.com/dealerkit/recon/internal/recon/store"
)

// CaseHandler 检测案件处理器
type CaseHandler struct {
	svc      *service.CaseService
	analysis *service.AnalysisService
}

// NewCaseHandler 创建案件处理器
func NewCaseHandler(svc *service.CaseService, analysis *service.AnalysisService) *CaseHandler {
	return &CaseHandler{svc: svc, analysis: analysis}
}

// List 获取案件列表（创建时间倒序）
// GET /api/v1/cases
func (h *CaseHandler) List(c *gin.Context) {
	cases := h.svc.List(c.Request.Context())
	Success(c, gin.H{"items": cases, "total": len(cases)})
}

// Analyze 送AI分析并创建新案件
// POST /api/v1/cases/analyze
func (h *CaseHandler) Analyze(c *gin.Context) {
	var req service.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.analysis.Analyze(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAINotConfigured):
			BadGateway(c, "AI分析服务未配置")
		case errors.Is(err, store.ErrQuotaExceeded):
			QuotaExceeded(c)
		default:
			BadGateway(c, "AI分析失败: "+err.Error())
		}
		return
	}
	Created(c, result)
}

// Get 获取案件详情
// GET /api/v1/cases/:id
func (h *CaseHandler) Get(c *gin.Context) {
	result, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "案件不存在")
			return
		}
		InternalError(c, "获取案件失败: "+err.Error())
		return
	}
	Success(c, result)
}

// Update 编辑案件车辆/录入数据
// PUT /api/v1/cases/:id
func (h *CaseHandler) Update(c *gin.Context) {
	var req service.UpdateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			NotFound(c, "案件不存在")
		case errors.Is(err, store.ErrQuotaExceeded):
			QuotaExceeded(c)
		default:
			InternalError(c, "更新案件失败: "+err.Error())
		}
		return
	}
	Success(c, result)
}

// Delete 删除案件
// DELETE /api/v1/cases/:id
func (h *CaseHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		InternalError(c, "删除案件失败: "+err.Error())
		return
	}
	Success(c, gin.H{"message": "deleted"})
}

// updateStatusRequest 状态变更请求
type updateStatusRequest struct {
	Status entity.CaseStatus `json:"status" binding:"required"`
}

// UpdateStatus 执行状态变更
// PUT /api/v1/cases/:id/status
func (h *CaseHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if !entity.ValidStatus(req.Status) {
		BadRequest(c, "未知状态: "+string(req.Status))
		return
	}

	result, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		var ineligible *lifecycle.IneligibleError
		switch {
		case errors.As(err, &ineligible):
			Ineligible(c, ineligible.Reason)
		case errors.Is(err, store.ErrNotFound):
			NotFound(c, "案件不存在")
		case errors.Is(err, store.ErrQuotaExceeded):
			QuotaExceeded(c)
		default:
			InternalError(c, "状态变更失败: "+err.Error())
		}
		return
	}
	Success(c, result)
}

// History 获取案件状态变更历史
// GET /api/v1/cases/:id/history
func (h *CaseHandler) History(c *gin.Context) {
	history, err := h.svc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "案件不存在")
			return
		}
		InternalError(c, "获取历史失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": history})
}

// recommendRequest 项目推荐请求
type recommendRequest struct {
	Year       int `json:"year" binding:"required"`
	OdometerKM int `json:"odometer_km" binding:"min=0"`
}

// RecommendProgram 按年份与里程推荐最优可入项目
// POST /api/v1/intake/recommend-program
func (h *CaseHandler) RecommendProgram(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	Success(c, gin.H{"program": h.svc.RecommendProgram(req.Year, req.OdometerKM)})
}

// DecodeVIN 解码VIN，失败时返回空结果（静默约定）
// GET /api/v1/vin/:vin
func (h *CaseHandler) DecodeVIN(c *gin.Context) {
	decoded := h.svc.DecodeVIN(c.Request.Context(), c.Param("vin"))
	Success(c, decoded)
}
