package handler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// UploadHandler 附件上传处理器。
// 配置了 MinIO 时写对象存储，否则落本地磁盘。
type UploadHandler struct {
	minioClient *minio.Client
	bucket      string
}

// NewUploadHandler 创建附件上传处理器
func NewUploadHandler(minioClient *minio.Client, bucket string) *UploadHandler {
	return &UploadHandler{minioClient: minioClient, bucket: bucket}
}

// UploadedFile 上传文件信息
type UploadedFile struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Upload 处理附件上传
// POST /api/v1/upload
func (h *UploadHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "无法解析上传文件: "+err.Error())
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		// 也尝试获取单文件
		files = form.File["file"]
	}
	if len(files) == 0 {
		BadRequest(c, "没有上传文件")
		return
	}

	now := time.Now()
	var uploaded []UploadedFile

	for _, fileHeader := range files {
		fileID := uuid.New().String()[:32]
		savedName := fmt.Sprintf("%s_%s", fileID, fileHeader.Filename)
		contentType := fileHeader.Header.Get("Content-Type")

		src, err := fileHeader.Open()
		if err != nil {
			InternalError(c, "读取上传文件失败: "+err.Error())
			return
		}

		var url string
		if h.minioClient != nil {
			objectName := fmt.Sprintf("uploads/%d/%02d/%s", now.Year(), now.Month(), savedName)
			_, err = h.minioClient.PutObject(c.Request.Context(), h.bucket, objectName, src, fileHeader.Size,
				minio.PutObjectOptions{ContentType: contentType})
			src.Close()
			if err != nil {
				InternalError(c, "上传到对象存储失败: "+err.Error())
				return
			}
			url = fmt.Sprintf("%s/%s/%s", h.minioClient.EndpointURL().String(), h.bucket, objectName)
		} else {
			dir := fmt.Sprintf("./uploads/%d/%02d", now.Year(), now.Month())
			if err := os.MkdirAll(dir, 0755); err != nil {
				src.Close()
				InternalError(c, "创建上传目录失败: "+err.Error())
				return
			}
			savePath := filepath.Join(dir, savedName)
			dst, err := os.Create(savePath)
			if err != nil {
				src.Close()
				InternalError(c, "保存文件失败: "+err.Error())
				return
			}
			_, err = io.Copy(dst, src)
			src.Close()
			dst.Close()
			if err != nil {
				InternalError(c, "写入文件失败: "+err.Error())
				return
			}
			url = fmt.Sprintf("/uploads/%d/%02d/%s", now.Year(), now.Month(), savedName)
		}

		uploaded = append(uploaded, UploadedFile{
			ID:          fileID,
			URL:         url,
			Filename:    fileHeader.Filename,
			Size:        fileHeader.Size,
			ContentType: contentType,
		})
	}

	Success(c, uploaded)
}
