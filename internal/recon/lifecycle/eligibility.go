package lifecycle

import (
	"fmt"

	"github.com/dealerkit/recon/internal/recon/entity"
)

// 准入门槛为固定业务常量，不做配置化
const (
	topTierMaxAgeYears = 6
	topTierMaxKM       = 120000
	midTierMaxAgeYears = 10
	midTierMaxKM       = 200000
)

// IneligibleError 表示车辆不满足目标项目的准入条件
type IneligibleError struct {
	Status entity.CaseStatus
	Reason string
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("vehicle ineligible for %s: %s", e.Status, e.Reason)
}

// Evaluate 校验车龄与里程是否满足目标状态的准入门槛。
// 车龄先于里程检查，返回第一条被违反的限制。
// 年龄为整年差值: 当前年份 - 车型年份。次年款新车差值为负，
// 低于一切年限门槛，按合格处理。
func Evaluate(status entity.CaseStatus, ageYears, odometerKM int) error {
	if odometerKM < 0 {
		return fmt.Errorf("invalid odometer: %d", odometerKM)
	}

	switch status {
	case entity.StatusTopTier:
		if ageYears > topTierMaxAgeYears {
			return &IneligibleError{Status: status, Reason: "Age > 6yrs"}
		}
		if odometerKM > topTierMaxKM {
			return &IneligibleError{Status: status, Reason: "Odometer > 120,000km"}
		}
		return nil
	case entity.StatusMidTier:
		if ageYears > midTierMaxAgeYears {
			return &IneligibleError{Status: status, Reason: "Age > 10yrs"}
		}
		if odometerKM > midTierMaxKM {
			return &IneligibleError{Status: status, Reason: "Odometer > 200,000km"}
		}
		return nil
	case entity.StatusCertified, entity.StatusWholesale, entity.StatusAsIs:
		// 无门槛
		return nil
	default:
		return fmt.Errorf("unknown status: %s", status)
	}
}

// BestEligible 按优先级返回车辆可进入的最优项目。
// 录入阶段当前选择不合格时自动降级到该结果。
func BestEligible(ageYears, odometerKM int) entity.CaseStatus {
	for _, status := range []entity.CaseStatus{entity.StatusTopTier, entity.StatusMidTier} {
		if Evaluate(status, ageYears, odometerKM) == nil {
			return status
		}
	}
	return entity.StatusCertified
}
