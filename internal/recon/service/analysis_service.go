package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dealerkit/recon/internal/recon/entity"
	"github.com/dealerkit/recon/internal/recon/lifecycle"
	"github.com/dealerkit/recon/internal/recon/sse"
	"github.com/dealerkit/recon/internal/recon/store"
	"github.com/dealerkit/recon/internal/shared/genai"
)

// ErrAINotConfigured 未配置生成式AI服务
var ErrAINotConfigured = errors.New("ai analysis not configured")

// 两种分析模式的系统指令
const (
	auditSystemInstruction = "You are a meticulous dealership reconditioning cost auditor. " +
		"Compare the service department estimate against the intake manager estimate, " +
		"identify discrepancies line by line using the supplied inspection standards, " +
		"and finish the report with the total justified reconditioning cost on its own " +
		"line in the exact form [DETECTED_TOTAL: <number>]."

	appraisalSystemInstruction = "You are an experienced used-vehicle appraiser. " +
		"Assess reconditioning needs and resale readiness from the inspection notes and " +
		"photos, reference the supplied dealership standards, and finish the report with " +
		"the total expected reconditioning cost on its own line in the exact form " +
		"[DETECTED_TOTAL: <number>]."
)

// AnalysisService AI分析编排服务
type AnalysisService struct {
	store  store.RecordStore
	ai     *genai.Client
	logger *zap.Logger
}

// NewAnalysisService 创建AI分析编排服务
func NewAnalysisService(s store.RecordStore, ai *genai.Client, logger *zap.Logger) *AnalysisService {
	return &AnalysisService{store: s, ai: ai, logger: logger}
}

// AnalyzeRequest 新案件分析请求
type AnalyzeRequest struct {
	Mode    string                `json:"mode" binding:"required,oneof=audit appraisal"`
	Vehicle entity.Vehicle        `json:"vehicle" binding:"required"`
	Data    entity.InspectionData `json:"data" binding:"required"`
}

// Analyze 组装请求送生成式AI分析，解析总额标记并立即持久化新案件。
// AI调用失败时整个操作中止，不产生任何状态变更。
func (s *AnalysisService) Analyze(ctx context.Context, req *AnalyzeRequest) (*entity.InspectionCase, error) {
	if s.ai == nil {
		return nil, ErrAINotConfigured
	}

	now := time.Now()
	ageYears := now.Year() - req.Vehicle.Year

	// 目标项目不合格时自动降级到最优可入项目
	initialStatus := req.Data.TargetProgram
	if initialStatus == "" || !entity.ValidStatus(initialStatus) {
		initialStatus = lifecycle.BestEligible(ageYears, req.Vehicle.OdometerKM)
	} else if initialStatus == entity.StatusTopTier || initialStatus == entity.StatusMidTier {
		if lifecycle.Evaluate(initialStatus, ageYears, req.Vehicle.OdometerKM) != nil {
			initialStatus = lifecycle.BestEligible(ageYears, req.Vehicle.OdometerKM)
		}
	}

	system := auditSystemInstruction
	if req.Mode == entity.ModeAppraisal {
		system = appraisalSystemInstruction
	}

	parts := s.buildParts(ctx, req, ageYears)

	result, err := s.ai.GenerateContent(ctx, system, parts)
	if err != nil {
		return nil, fmt.Errorf("ai analysis failed: %w", err)
	}

	analysis := result.Text
	if len(result.Citations) > 0 {
		var sb strings.Builder
		sb.WriteString(analysis)
		sb.WriteString("\n\nSources:\n")
		for _, cit := range result.Citations {
			sb.WriteString(fmt.Sprintf("- %s (%s)\n", cit.Title, cit.URI))
		}
		analysis = sb.String()
	}

	// 附件的内联 base64 内容不落库，仅保留引用
	data := req.Data
	data.TargetProgram = initialStatus
	data.Attachments = append([]entity.Attachment(nil), req.Data.Attachments...)
	for i := range data.Attachments {
		data.Attachments[i].Data = ""
	}

	c := &entity.InspectionCase{
		ID:            generateID(),
		CreatedAt:     now,
		Mode:          req.Mode,
		Vehicle:       req.Vehicle,
		Data:          data,
		Analysis:      analysis,
		DetectedTotal: genai.ExtractDetectedTotal(result.Text),
		CurrentStatus: initialStatus,
		History:       entity.StatusHistory{},
	}

	if err := s.store.SaveCase(ctx, c); err != nil {
		return nil, fmt.Errorf("persist case: %w", err)
	}
	sse.PublishCaseUpdate(c.ID, "created")
	return c, nil
}

// buildParts 组装送审内容: 车辆事实、双方笔记与估价、
// 标准文档规则摘录、技师历史画像、内联附件。
// 参考数据读取失败时降级跳过，不阻断分析。
func (s *AnalysisService) buildParts(ctx context.Context, req *AnalyzeRequest, ageYears int) []genai.Part {
	var facts strings.Builder
	v := req.Vehicle
	fmt.Fprintf(&facts, "Vehicle: %d %s %s %s\n", v.Year, v.Make, v.Model, v.Trim)
	fmt.Fprintf(&facts, "VIN: %s\n", v.VIN)
	fmt.Fprintf(&facts, "Odometer: %d km, age: %d years\n", v.OdometerKM, ageYears)
	if v.StockCode != "" {
		fmt.Fprintf(&facts, "Stock code: %s\n", v.StockCode)
	}
	if v.Channel != "" {
		fmt.Fprintf(&facts, "Acquisition channel: %s\n", v.Channel)
	}
	fmt.Fprintf(&facts, "\nService department notes:\n%s\n", req.Data.ServiceNotes)
	fmt.Fprintf(&facts, "\nIntake manager notes:\n%s\n", req.Data.ManagerNotes)
	fmt.Fprintf(&facts, "\nService estimate: %.2f\nManager estimate: %.2f\n",
		req.Data.ServiceEstimate, req.Data.ManagerEstimate)
	for flag, outcome := range req.Data.Flags {
		fmt.Fprintf(&facts, "Inspection flag %s: %s\n", flag, outcome)
	}

	parts := []genai.Part{genai.TextPart(facts.String())}

	if docs, err := s.store.ListStandards(ctx); err == nil && len(docs) > 0 {
		var rules strings.Builder
		rules.WriteString("Dealership inspection standards:\n")
		for _, doc := range docs {
			fmt.Fprintf(&rules, "\n[%s]\n%s\n", doc.Type, doc.ExtractedRules)
		}
		parts = append(parts, genai.TextPart(rules.String()))
	} else if err != nil {
		s.logger.Warn("load standards for analysis failed", zap.Error(err))
	}

	if req.Data.TechnicianName != "" {
		if cases, err := s.store.ListCases(ctx); err == nil {
			for _, p := range TechnicianProfiles(cases) {
				if p.Name == req.Data.TechnicianName {
					parts = append(parts, genai.TextPart(fmt.Sprintf(
						"Historical profile of technician %s: %d cases, average estimate variance %.2f, style %s.",
						p.Name, p.Cases, p.AvgVariance, p.Style)))
					break
				}
			}
		} else {
			s.logger.Warn("load cases for technician profile failed", zap.Error(err))
		}
	}

	for _, att := range req.Data.Attachments {
		if att.Data == "" {
			continue
		}
		parts = append(parts, genai.Part{InlineData: &genai.Blob{
			MimeType: att.MimeType,
			Data:     att.Data,
		}})
	}
	return parts
}
