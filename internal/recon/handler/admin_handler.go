package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/dealerkit/recon/internal/recon/service"
)

// AdminHandler 后台管理处理器
type AdminHandler struct {
	svc      *service.AdminService
	settings *service.SettingsService
}

// NewAdminHandler 创建后台管理处理器
func NewAdminHandler(svc *service.AdminService, settings *service.SettingsService) *AdminHandler {
	return &AdminHandler{svc: svc, settings: settings}
}

// Sync 本地到云端一次性同步
// POST /api/v1/admin/sync
func (h *AdminHandler) Sync(c *gin.Context) {
	report, err := h.svc.Sync(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrRemoteNotConfigured) {
			Error(c, 40900, "未配置远端数据库，无法同步")
			return
		}
		// 中止时返回已完成的部分计数
		c.JSON(500, Response{
			Code:    50010,
			Message: "同步中止: " + err.Error(),
			Data:    report,
		})
		return
	}
	Success(c, report)
}

// Status 系统状态
// GET /api/v1/admin/status
func (h *AdminHandler) Status(c *gin.Context) {
	Success(c, h.svc.Status(c.Request.Context()))
}

// GetBrand 获取经销商品牌
// GET /api/v1/settings/brand
func (h *AdminHandler) GetBrand(c *gin.Context) {
	Success(c, gin.H{"brand": h.settings.GetBrand(c.Request.Context())})
}

type setBrandRequest struct {
	Brand string `json:"brand" binding:"required"`
}

// SetBrand 更新经销商品牌
// PUT /api/v1/settings/brand
func (h *AdminHandler) SetBrand(c *gin.Context) {
	var req setBrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.settings.SetBrand(c.Request.Context(), req.Brand); err != nil {
		InternalError(c, "保存品牌失败: "+err.Error())
		return
	}
	Success(c, gin.H{"brand": req.Brand})
}
