package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dealerkit/recon/internal/recon/entity"
	"github.com/dealerkit/recon/internal/recon/store"
	"github.com/dealerkit/recon/internal/shared/genai"
)

// StandardService 标准文档服务
type StandardService struct {
	store  store.RecordStore
	ai     *genai.Client
	logger *zap.Logger
}

// NewStandardService 创建标准文档服务
func NewStandardService(s store.RecordStore, ai *genai.Client, logger *zap.Logger) *StandardService {
	return &StandardService{store: s, ai: ai, logger: logger}
}

// List 获取全部标准文档，读失败降级为空列表
func (s *StandardService) List(ctx context.Context) []entity.StandardDocument {
	docs, err := s.store.ListStandards(ctx)
	if err != nil {
		s.logger.Warn("list standards failed", zap.Error(err))
		return []entity.StandardDocument{}
	}
	return docs
}

// Upload 上传标准文档: 送AI提取规则文本后按类型 upsert，
// 同类型旧文档被替换
func (s *StandardService) Upload(ctx context.Context, docType, fileName, mimeType string, data []byte) (*entity.StandardDocument, error) {
	if !entity.ValidDocType(docType) {
		return nil, fmt.Errorf("invalid document type: %s", docType)
	}
	if s.ai == nil {
		return nil, ErrAINotConfigured
	}

	rules, err := s.ai.DigestDocument(ctx, data, mimeType, docType)
	if err != nil {
		return nil, fmt.Errorf("digest document: %w", err)
	}

	doc := &entity.StandardDocument{
		ID:             generateID(),
		Type:           docType,
		FileName:       fileName,
		UploadDate:     time.Now(),
		ExtractedRules: rules,
	}
	if err := s.store.SaveStandard(ctx, doc); err != nil {
		return nil, fmt.Errorf("save standard: %w", err)
	}
	return doc, nil
}

// Delete 删除指定类型的标准文档（幂等）
func (s *StandardService) Delete(ctx context.Context, docType string) error {
	if !entity.ValidDocType(docType) {
		return fmt.Errorf("invalid document type: %s", docType)
	}
	return s.store.DeleteStandard(ctx, docType)
}
