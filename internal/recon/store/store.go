package store

import (
	"context"
	"errors"

	"github.com/dealerkit/recon/internal/recon/entity"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrQuotaExceeded 本地存储容量已满，可由用户清理旧记录恢复
	ErrQuotaExceeded = errors.New("local storage quota exceeded")
)

// Kind 存储后端类型
type Kind string

const (
	KindRemote Kind = "remote"
	KindLocal  Kind = "local"
)

// RecordStore 统一的记录存储接口。进程启动时根据远端凭证
// 一次性选定实现，调用路径上不再区分后端。
type RecordStore interface {
	Kind() Kind
	Ping(ctx context.Context) error

	// ListCases 按创建时间倒序返回全部案件
	ListCases(ctx context.Context) ([]entity.InspectionCase, error)
	GetCase(ctx context.Context, id string) (*entity.InspectionCase, error)
	// SaveCase 按 ID upsert
	SaveCase(ctx context.Context, c *entity.InspectionCase) error
	// DeleteCase 幂等删除
	DeleteCase(ctx context.Context, id string) error

	ListStandards(ctx context.Context) ([]entity.StandardDocument, error)
	GetStandard(ctx context.Context, docType string) (*entity.StandardDocument, error)
	// SaveStandard 按文档类型 upsert，每种类型最多一份
	SaveStandard(ctx context.Context, doc *entity.StandardDocument) error
	DeleteStandard(ctx context.Context, docType string) error

	ListAppraisers(ctx context.Context) ([]entity.Appraiser, error)
	SaveAppraiser(ctx context.Context, a *entity.Appraiser) error
	DeleteAppraiser(ctx context.Context, id string) error

	ListTechnicians(ctx context.Context) ([]entity.Technician, error)
	SaveTechnician(ctx context.Context, tech *entity.Technician) error
	DeleteTechnician(ctx context.Context, id string) error

	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}
