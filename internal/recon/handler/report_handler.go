package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealerkit/recon/internal/recon/service"
)

// ReportHandler 统计报表处理器
type ReportHandler struct {
	svc *service.ReportService
}

// NewReportHandler 创建统计报表处理器
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// parseWindow 解析时间窗口参数。
// range=all|month|ytd|custom，custom 时 from/to 为毫秒时间戳。
func parseWindow(c *gin.Context) (rangeKey string, from, to time.Time, ok bool) {
	rangeKey = c.DefaultQuery("range", service.RangeAll)
	switch rangeKey {
	case service.RangeAll, service.RangeMonth, service.RangeYTD:
		return rangeKey, time.Time{}, time.Time{}, true
	case service.RangeCustom:
		fromMs, err1 := strconv.ParseInt(c.Query("from"), 10, 64)
		toMs, err2 := strconv.ParseInt(c.Query("to"), 10, 64)
		if err1 != nil || err2 != nil {
			BadRequest(c, "自定义区间需要毫秒时间戳 from/to")
			return "", time.Time{}, time.Time{}, false
		}
		return rangeKey, time.UnixMilli(fromMs), time.UnixMilli(toMs), true
	default:
		BadRequest(c, "未知时间范围: "+rangeKey)
		return "", time.Time{}, time.Time{}, false
	}
}

// Dashboard 仪表盘统计
// GET /api/v1/reports/dashboard?range=...&from=&to=
func (h *ReportHandler) Dashboard(c *gin.Context) {
	rangeKey, from, to, ok := parseWindow(c)
	if !ok {
		return
	}
	Success(c, h.svc.Dashboard(c.Request.Context(), rangeKey, from, to))
}

// Technicians 技师画像
// GET /api/v1/reports/technicians?range=...&from=&to=
func (h *ReportHandler) Technicians(c *gin.Context) {
	rangeKey, from, to, ok := parseWindow(c)
	if !ok {
		return
	}
	Success(c, gin.H{"items": h.svc.Technicians(c.Request.Context(), rangeKey, from, to)})
}
