package lifecycle

import (
	"fmt"
	"time"

	"github.com/dealerkit/recon/internal/recon/entity"
)

// statusRank 状态等级表，仅用于变更分类。
// 等级互不相等，因此合法的跨状态变更不存在同级移动。
var statusRank = map[entity.CaseStatus]int{
	entity.StatusTopTier:   5,
	entity.StatusMidTier:   4,
	entity.StatusCertified: 3,
	entity.StatusAsIs:      2,
	entity.StatusWholesale: 1,
}

// Rank 返回状态等级
func Rank(status entity.CaseStatus) (int, bool) {
	r, ok := statusRank[status]
	return r, ok
}

// Classify 按等级比较分类一次状态变更
func Classify(from, to entity.CaseStatus) (entity.TransitionType, error) {
	fromRank, ok := statusRank[from]
	if !ok {
		return "", fmt.Errorf("unknown status: %s", from)
	}
	toRank, ok := statusRank[to]
	if !ok {
		return "", fmt.Errorf("unknown status: %s", to)
	}
	if toRank > fromRank {
		return entity.TransitionUpgrade, nil
	}
	if toRank < fromRank {
		return entity.TransitionDowngrade, nil
	}
	return "", fmt.Errorf("rank collision between %s and %s", from, to)
}

// Transition 对案件执行一次状态变更:
// 同状态为幂等空操作，返回 (nil, nil) 且不追加历史；
// 目标状态不合格时返回 *IneligibleError，案件不变；
// 成功时追加历史条目并更新 CurrentStatus。
// 持久化由调用方负责，先保存成功再对外生效。
func Transition(c *entity.InspectionCase, to entity.CaseStatus, now time.Time) (*entity.StatusTransition, error) {
	if to == c.CurrentStatus {
		return nil, nil
	}

	ageYears := now.Year() - c.Vehicle.Year
	if err := Evaluate(to, ageYears, c.Vehicle.OdometerKM); err != nil {
		return nil, err
	}

	transType, err := Classify(c.CurrentStatus, to)
	if err != nil {
		return nil, err
	}

	entry := entity.StatusTransition{
		From: c.CurrentStatus,
		To:   to,
		At:   now,
		Type: transType,
	}
	c.History = append(c.History, entry)
	c.CurrentStatus = to
	return &entry, nil
}
