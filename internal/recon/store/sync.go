package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dealerkit/recon/internal/recon/entity"
)

// SyncReport 同步结果，失败时为已成功写入的部分计数
type SyncReport struct {
	Standards   int `json:"standards"`
	Appraisers  int `json:"appraisers"`
	Technicians int `json:"technicians"`
	Cases       int `json:"cases"`
	Settings    int `json:"settings"`
	Total       int `json:"total"`
}

// ProgressFunc 同步进度回调，entity 为记录种类，done 为累计成功数
type ProgressFunc func(entityKind string, done int)

// SyncLocalToCloud 将本地库全部记录按 upsert 重放到远端。
// 每条写入独立提交，遇到第一个不可恢复错误即中止并返回
// 部分计数；所有重放均按 key 幂等，失败后可安全重跑。
func SyncLocalToCloud(ctx context.Context, local, remote RecordStore, progress ProgressFunc) (*SyncReport, error) {
	report := &SyncReport{}
	notify := func(kind string) {
		report.Total++
		if progress != nil {
			progress(kind, report.Total)
		}
	}

	docs, err := local.ListStandards(ctx)
	if err != nil {
		return report, fmt.Errorf("read local standards: %w", err)
	}
	for i := range docs {
		if err := remote.SaveStandard(ctx, &docs[i]); err != nil {
			return report, fmt.Errorf("sync standard %s: %w", docs[i].Type, err)
		}
		report.Standards++
		notify("standard")
	}

	appraisers, err := local.ListAppraisers(ctx)
	if err != nil {
		return report, fmt.Errorf("read local appraisers: %w", err)
	}
	for i := range appraisers {
		if err := remote.SaveAppraiser(ctx, &appraisers[i]); err != nil {
			return report, fmt.Errorf("sync appraiser %s: %w", appraisers[i].ID, err)
		}
		report.Appraisers++
		notify("appraiser")
	}

	techs, err := local.ListTechnicians(ctx)
	if err != nil {
		return report, fmt.Errorf("read local technicians: %w", err)
	}
	for i := range techs {
		if err := remote.SaveTechnician(ctx, &techs[i]); err != nil {
			return report, fmt.Errorf("sync technician %s: %w", techs[i].ID, err)
		}
		report.Technicians++
		notify("technician")
	}

	cases, err := local.ListCases(ctx)
	if err != nil {
		return report, fmt.Errorf("read local cases: %w", err)
	}
	for i := range cases {
		if err := remote.SaveCase(ctx, &cases[i]); err != nil {
			return report, fmt.Errorf("sync case %s: %w", cases[i].ID, err)
		}
		report.Cases++
		notify("case")
	}

	for _, key := range []string{entity.SettingKeyBrand} {
		value, err := local.GetSetting(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("read local setting %s: %w", key, err)
		}
		if err := remote.PutSetting(ctx, key, value); err != nil {
			return report, fmt.Errorf("sync setting %s: %w", key, err)
		}
		report.Settings++
		notify("setting")
	}

	return report, nil
}
