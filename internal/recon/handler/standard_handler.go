package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dealerkit/recon/internal/recon/service"
	"github.com/dealerkit/recon/internal/recon/store"
)

// 标准文档上传大小上限
const maxStandardSize = 20 << 20 // 20MB

// StandardHandler 标准文档处理器
type StandardHandler struct {
	svc *service.StandardService
}

// NewStandardHandler 创建标准文档处理器
func NewStandardHandler(svc *service.StandardService) *StandardHandler {
	return &StandardHandler{svc: svc}
}

// List 获取全部标准文档
// GET /api/v1/standards
func (h *StandardHandler) List(c *gin.Context) {
	docs := h.svc.List(c.Request.Context())
	Success(c, gin.H{"items": docs})
}

// Upload 上传标准文档并提取规则
// POST /api/v1/standards  (multipart: type + file)
func (h *StandardHandler) Upload(c *gin.Context) {
	docType := strings.ToUpper(c.PostForm("type"))
	if docType == "" {
		BadRequest(c, "缺少文档类型")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件: "+err.Error())
		return
	}
	if fileHeader.Size > maxStandardSize {
		BadRequest(c, "文件超过20MB限制")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	doc, err := h.svc.Upload(c.Request.Context(), docType, fileHeader.Filename, mimeType, data)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAINotConfigured):
			BadGateway(c, "AI分析服务未配置")
		case errors.Is(err, store.ErrQuotaExceeded):
			QuotaExceeded(c)
		case strings.Contains(err.Error(), "invalid document type"):
			BadRequest(c, "未知文档类型: "+docType)
		case strings.Contains(err.Error(), "digest document"):
			BadGateway(c, "文档规则提取失败: "+err.Error())
		default:
			InternalError(c, "上传标准文档失败: "+err.Error())
		}
		return
	}
	Created(c, doc)
}

// Delete 删除指定类型的标准文档
// DELETE /api/v1/standards/:type
func (h *StandardHandler) Delete(c *gin.Context) {
	docType := strings.ToUpper(c.Param("type"))
	if err := h.svc.Delete(c.Request.Context(), docType); err != nil {
		if strings.Contains(err.Error(), "invalid document type") {
			BadRequest(c, "未知文档类型: "+docType)
			return
		}
		InternalError(c, "删除标准文档失败: "+err.Error())
		return
	}
	Success(c, gin.H{"message": "deleted"})
}
