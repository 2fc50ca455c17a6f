package service

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dealerkit/recon/internal/recon/entity"
	"github.com/dealerkit/recon/internal/recon/store"
)

// 技师风格分类阈值（固定业务常量）
const (
	aggressiveVarianceAbove = 1500
	passiveVarianceBelow    = -500
)

// 技师风格标签
const (
	StyleAggressive = "Aggressive"
	StylePassive    = "Passive"
	StyleAccurate   = "Accurate"
)

// 报表时间窗口
const (
	RangeAll    = "all"
	RangeMonth  = "month"
	RangeYTD    = "ytd"
	RangeCustom = "custom"
)

// TechnicianProfile 技师可靠性画像
type TechnicianProfile struct {
	Name        string  `json:"name"`
	Cases       int     `json:"cases"`
	AvgVariance float64 `json:"avg_variance"`
	Accuracy    float64 `json:"accuracy"`
	Style       string  `json:"style"`
}

// TechnicianProfiles 按技师姓名分组计算平均差异与可靠性评分。
// 差异 = 维修部估价 - 经理估价；未填技师的案件不参与分组。
// 纯归约，每次请求重新计算。
func TechnicianProfiles(cases []entity.InspectionCase) []TechnicianProfile {
	type acc struct {
		count int
		sum   float64
	}
	byName := make(map[string]*acc)
	for _, c := range cases {
		name := c.Data.TechnicianName
		if name == "" {
			continue
		}
		a, ok := byName[name]
		if !ok {
			a = &acc{}
			byName[name] = a
		}
		a.count++
		a.sum += c.Data.ServiceEstimate - c.Data.ManagerEstimate
	}

	profiles := make([]TechnicianProfile, 0, len(byName))
	for name, a := range byName {
		avg := a.sum / float64(a.count)
		profiles = append(profiles, TechnicianProfile{
			Name:        name,
			Cases:       a.count,
			AvgVariance: avg,
			Accuracy:    math.Max(0, 100-math.Abs(avg)/100),
			Style:       classifyStyle(avg),
		})
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles
}

func classifyStyle(avgVariance float64) string {
	switch {
	case avgVariance > aggressiveVarianceAbove:
		return StyleAggressive
	case avgVariance < passiveVarianceBelow:
		return StylePassive
	default:
		return StyleAccurate
	}
}

// FilterByRange 按时间窗口过滤案件，所有下游统计都在过滤结果上运行
func FilterByRange(cases []entity.InspectionCase, rangeKey string, from, to time.Time, now time.Time) []entity.InspectionCase {
	var start, end time.Time
	switch rangeKey {
	case RangeMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = now
	case RangeYTD:
		start = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		end = now
	case RangeCustom:
		start, end = from, to
	default:
		return cases
	}

	filtered := make([]entity.InspectionCase, 0, len(cases))
	for _, c := range cases {
		if c.CreatedAt.Before(start) {
			continue
		}
		if !end.IsZero() && c.CreatedAt.After(end) {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

// MonthlyVariance 月度差异序列点（图表用）
type MonthlyVariance struct {
	Month    string  `json:"month"`
	Cases    int     `json:"cases"`
	Variance float64 `json:"variance"`
}

// DashboardStats 仪表盘统计
type DashboardStats struct {
	TotalCases    int                       `json:"total_cases"`
	ByStatus      map[entity.CaseStatus]int `json:"by_status"`
	ByMode        map[string]int            `json:"by_mode"`
	TotalVariance float64                   `json:"total_variance"`
	AvgVariance   float64                   `json:"avg_variance"`
	Monthly       []MonthlyVariance         `json:"monthly"`
	Technicians   []TechnicianProfile       `json:"technicians"`
}

// ReportService 统计报表服务
type ReportService struct {
	store  store.RecordStore
	logger *zap.Logger
}

// NewReportService 创建统计报表服务
func NewReportService(s store.RecordStore, logger *zap.Logger) *ReportService {
	return &ReportService{store: s, logger: logger}
}

// loadCases 全量读取案件，读失败降级为空集
func (s *ReportService) loadCases(ctx context.Context) []entity.InspectionCase {
	cases, err := s.store.ListCases(ctx)
	if err != nil {
		s.logger.Warn("load cases for report failed", zap.Error(err))
		return []entity.InspectionCase{}
	}
	return cases
}

// Dashboard 计算时间窗口内的仪表盘统计
func (s *ReportService) Dashboard(ctx context.Context, rangeKey string, from, to time.Time) *DashboardStats {
	cases := FilterByRange(s.loadCases(ctx), rangeKey, from, to, time.Now())

	stats := &DashboardStats{
		TotalCases: len(cases),
		ByStatus:   make(map[entity.CaseStatus]int),
		ByMode:     make(map[string]int),
	}

	monthly := make(map[string]*MonthlyVariance)
	for _, c := range cases {
		stats.ByStatus[c.CurrentStatus]++
		stats.ByMode[c.Mode]++

		variance := c.Data.ServiceEstimate - c.Data.ManagerEstimate
		stats.TotalVariance += variance

		month := c.CreatedAt.Format("2006-01")
		m, ok := monthly[month]
		if !ok {
			m = &MonthlyVariance{Month: month}
			monthly[month] = m
		}
		m.Cases++
		m.Variance += variance
	}
	if len(cases) > 0 {
		stats.AvgVariance = stats.TotalVariance / float64(len(cases))
	}

	stats.Monthly = make([]MonthlyVariance, 0, len(monthly))
	for _, m := range monthly {
		stats.Monthly = append(stats.Monthly, *m)
	}
	sort.Slice(stats.Monthly, func(i, j int) bool { return stats.Monthly[i].Month < stats.Monthly[j].Month })

	stats.Technicians = TechnicianProfiles(cases)
	return stats
}

// Technicians 计算时间窗口内的技师画像
func (s *ReportService) Technicians(ctx context.Context, rangeKey string, from, to time.Time) []TechnicianProfile {
	cases := FilterByRange(s.loadCases(ctx), rangeKey, from, to, time.Now())
	return TechnicianProfiles(cases)
}
