package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/dealerkit/recon/internal/recon/service"
)

// PersonnelHandler 人员名录处理器
type PersonnelHandler struct {
	svc *service.PersonnelService
}

// NewPersonnelHandler 创建人员名录处理器
func NewPersonnelHandler(svc *service.PersonnelService) *PersonnelHandler {
	return &PersonnelHandler{svc: svc}
}

// ListAppraisers 获取评估师列表
// GET /api/v1/appraisers
func (h *PersonnelHandler) ListAppraisers(c *gin.Context) {
	Success(c, gin.H{"items": h.svc.ListAppraisers(c.Request.Context())})
}

type createAppraiserRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateAppraiser 新增评估师
// POST /api/v1/appraisers
func (h *PersonnelHandler) CreateAppraiser(c *gin.Context) {
	var req createAppraiserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	a, err := h.svc.CreateAppraiser(c.Request.Context(), req.Name)
	if err != nil {
		InternalError(c, "新增评估师失败: "+err.Error())
		return
	}
	Created(c, a)
}

// DeleteAppraiser 删除评估师
// DELETE /api/v1/appraisers/:id
func (h *PersonnelHandler) DeleteAppraiser(c *gin.Context) {
	if err := h.svc.DeleteAppraiser(c.Request.Context(), c.Param("id")); err != nil {
		InternalError(c, "删除评估师失败: "+err.Error())
		return
	}
	Success(c, gin.H{"message": "deleted"})
}

// ListTechnicians 获取技师列表
// GET /api/v1/technicians
func (h *PersonnelHandler) ListTechnicians(c *gin.Context) {
	Success(c, gin.H{"items": h.svc.ListTechnicians(c.Request.Context())})
}

type createTechnicianRequest struct {
	Name       string `json:"name" binding:"required"`
	TechNumber string `json:"tech_number"`
}

// CreateTechnician 新增技师
// POST /api/v1/technicians
func (h *PersonnelHandler) CreateTechnician(c *gin.Context) {
	var req createTechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	tech, err := h.svc.CreateTechnician(c.Request.Context(), req.Name, req.TechNumber)
	if err != nil {
		InternalError(c, "新增技师失败: "+err.Error())
		return
	}
	Created(c, tech)
}

// DeleteTechnician 删除技师
// DELETE /api/v1/technicians/:id
func (h *PersonnelHandler) DeleteTechnician(c *gin.Context) {
	if err := h.svc.DeleteTechnician(c.Request.Context(), c.Param("id")); err != nil {
		InternalError(c, "删除技师失败: "+err.Error())
		return
	}
	Success(c, gin.H{"message": "deleted"})
}
