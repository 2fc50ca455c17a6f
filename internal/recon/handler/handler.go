package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"

	"github.com/dealerkit/recon/internal/config"
	"github.com/dealerkit/recon/internal/recon/service"
)

// Handlers 处理器集合
type Handlers struct {
	Auth      *AuthHandler
	Case      *CaseHandler
	Standard  *StandardHandler
	Personnel *PersonnelHandler
	Report    *ReportHandler
	Admin     *AdminHandler
	Upload    *UploadHandler
	SSE       *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, cfg *config.Config, minioClient *minio.Client) *Handlers {
	return &Handlers{
		Auth:      NewAuthHandler(svc.Auth),
		Case:      NewCaseHandler(svc.Case, svc.Analysis),
		Standard:  NewStandardHandler(svc.Standard),
		Personnel: NewPersonnelHandler(svc.Personnel),
		Report:    NewReportHandler(svc.Report),
		Admin:     NewAdminHandler(svc.Admin, svc.Settings),
		Upload:    NewUploadHandler(minioClient, cfg.MinIO.Bucket),
		SSE:       NewSSEHandler(),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Ineligible 准入校验失败响应
func Ineligible(c *gin.Context, message string) {
	Error(c, 42200, message)
}

// BadGateway 外部服务失败响应
func BadGateway(c *gin.Context, message string) {
	Error(c, 50200, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// QuotaExceeded 本地存储容量耗尽响应
func QuotaExceeded(c *gin.Context) {
	Error(c, 50700, "本地存储空间已满，请删除旧案件后重试")
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}
