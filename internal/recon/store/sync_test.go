package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dealerkit/recon/internal/recon/entity"
)

func TestSyncLocalToCloudNoDuplicates(t *testing.T) {
	ctx := context.Background()
	local := newLocalStore(t)
	remote := newRemoteStore(t)

	for _, a := range []entity.Appraiser{
		{ID: "app-1", Name: "Riley"},
		{ID: "app-2", Name: "Sam"},
		{ID: "app-3", Name: "Jordan"},
	} {
		a := a
		if err := local.SaveAppraiser(ctx, &a); err != nil {
			t.Fatalf("seed local appraiser: %v", err)
		}
	}
	// two already exist remotely under the same ids
	if err := remote.SaveAppraiser(ctx, &entity.Appraiser{ID: "app-1", Name: "Riley (stale)"}); err != nil {
		t.Fatalf("seed remote appraiser: %v", err)
	}
	if err := remote.SaveAppraiser(ctx, &entity.Appraiser{ID: "app-2", Name: "Sam"}); err != nil {
		t.Fatalf("seed remote appraiser: %v", err)
	}

	report, err := SyncLocalToCloud(ctx, local, remote, nil)
	if err != nil {
		t.Fatalf("SyncLocalToCloud: %v", err)
	}
	if report.Appraisers != 3 {
		t.Fatalf("expected 3 appraisers synced, got %d", report.Appraisers)
	}

	appraisers, err := remote.ListAppraisers(ctx)
	if err != nil {
		t.Fatalf("ListAppraisers: %v", err)
	}
	if len(appraisers) != 3 {
		t.Fatalf("expected exactly 3 remote appraisers, got %d", len(appraisers))
	}
	for _, a := range appraisers {
		if a.ID == "app-1" && a.Name != "Riley" {
			t.Fatalf("expected local record to overwrite stale remote copy, got %q", a.Name)
		}
	}
}

func TestSyncReplaysAllEntityKinds(t *testing.T) {
	ctx := context.Background()
	local := newLocalStore(t)
	remote := newRemoteStore(t)
	now := time.Now().Truncate(time.Second)

	if err := local.SaveStandard(ctx, &entity.StandardDocument{ID: "std-1", Type: entity.DocTypeSafety, FileName: "safety.pdf", UploadDate: now, ExtractedRules: "rule text"}); err != nil {
		t.Fatalf("seed standard: %v", err)
	}
	if err := local.SaveTechnician(ctx, &entity.Technician{ID: "tech-1", Name: "Dana", TechNumber: "T042"}); err != nil {
		t.Fatalf("seed technician: %v", err)
	}
	if err := local.SaveCase(ctx, sampleCase("case-1", now)); err != nil {
		t.Fatalf("seed case: %v", err)
	}
	if err := local.PutSetting(ctx, entity.SettingKeyBrand, "Northgate Motors"); err != nil {
		t.Fatalf("seed setting: %v", err)
	}

	var events int
	report, err := SyncLocalToCloud(ctx, local, remote, func(kind string, done int) { events++ })
	if err != nil {
		t.Fatalf("SyncLocalToCloud: %v", err)
	}
	if report.Standards != 1 || report.Technicians != 1 || report.Cases != 1 || report.Settings != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Total != 4 || events != 4 {
		t.Fatalf("expected 4 progress events, got total=%d events=%d", report.Total, events)
	}

	got, err := remote.GetCase(ctx, "case-1")
	if err != nil {
		t.Fatalf("GetCase after sync: %v", err)
	}
	if len(got.History) != 1 {
		t.Fatalf("history lost in sync: %+v", got.History)
	}
	brand, err := remote.GetSetting(ctx, entity.SettingKeyBrand)
	if err != nil || brand != "Northgate Motors" {
		t.Fatalf("setting not synced: %q %v", brand, err)
	}

	// re-run is non-destructive
	report, err = SyncLocalToCloud(ctx, local, remote, nil)
	if err != nil {
		t.Fatalf("second SyncLocalToCloud: %v", err)
	}
	if report.Total != 4 {
		t.Fatalf("expected re-run to replay 4 records, got %d", report.Total)
	}
	cases, err := remote.ListCases(ctx)
	if err != nil || len(cases) != 1 {
		t.Fatalf("expected 1 remote case after re-run, got %d (%v)", len(cases), err)
	}
}

// flakyRemote 在第 failAfter 次评估师写入后开始报错
type flakyRemote struct {
	*SQLStore
	failAfter int
	saves     int
}

func (f *flakyRemote) SaveAppraiser(ctx context.Context, a *entity.Appraiser) error {
	if f.saves >= f.failAfter {
		return errors.New("connection reset")
	}
	f.saves++
	return f.SQLStore.SaveAppraiser(ctx, a)
}

func TestSyncAbortsWithPartialCount(t *testing.T) {
	ctx := context.Background()
	local := newLocalStore(t)
	remote := &flakyRemote{SQLStore: newRemoteStore(t), failAfter: 1}

	if err := local.SaveStandard(ctx, &entity.StandardDocument{ID: "std-1", Type: entity.DocTypePolicy, FileName: "policy.pdf", UploadDate: time.Now()}); err != nil {
		t.Fatalf("seed standard: %v", err)
	}
	for _, id := range []string{"app-1", "app-2", "app-3"} {
		if err := local.SaveAppraiser(ctx, &entity.Appraiser{ID: id, Name: id}); err != nil {
			t.Fatalf("seed appraiser: %v", err)
		}
	}

	report, err := SyncLocalToCloud(ctx, local, remote, nil)
	if err == nil {
		t.Fatalf("expected sync to abort")
	}
	if report.Standards != 1 || report.Appraisers != 1 {
		t.Fatalf("expected partial count standards=1 appraisers=1, got %+v", report)
	}
	if report.Total != 2 {
		t.Fatalf("expected total 2, got %d", report.Total)
	}
}
