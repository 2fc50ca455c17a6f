package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dealerkit/recon/internal/config"
	"github.com/dealerkit/recon/internal/middleware"
	"github.com/dealerkit/recon/internal/recon/entity"
	"github.com/dealerkit/recon/internal/recon/service"
	"github.com/dealerkit/recon/internal/recon/store"
	"github.com/dealerkit/recon/internal/recon/testutil"
)

func setupAdminTest(t *testing.T, primary store.RecordStore, local *store.LocalStore) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		Dealership: config.DealershipConfig{Brand: "My Dealership"},
	}
	h := NewAdminHandler(
		service.NewAdminService(primary, local, nil, zap.NewNop()),
		service.NewSettingsService(primary, cfg, zap.NewNop()),
	)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/settings/brand", h.GetBrand)
	api.PUT("/settings/brand", h.SetBrand)
	admin := api.Group("/admin", middleware.RequireRole("admin"))
	admin.POST("/sync", h.Sync)
	admin.GET("/status", h.Status)

	return router
}

func TestSyncRequiresRemoteBackend(t *testing.T) {
	local := testutil.SetupLocalStore(t)
	router := setupAdminTest(t, local, local)

	w := testutil.DoRequest(router, "POST", "/api/v1/admin/sync", nil, testutil.DefaultTestToken())
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 when primary store is local, got %d", w.Code)
	}
}

func TestSyncForbiddenForNonAdmin(t *testing.T) {
	local := testutil.SetupLocalStore(t)
	router := setupAdminTest(t, testutil.SetupRecordStore(t), local)

	token := testutil.GenerateTestToken("viewer-1", "Viewer", []string{"viewer"})
	w := testutil.DoRequest(router, "POST", "/api/v1/admin/sync", nil, token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin role, got %d", w.Code)
	}
}

func TestSyncReplaysLocalRecords(t *testing.T) {
	local := testutil.SetupLocalStore(t)
	remote := testutil.SetupRecordStore(t)
	router := setupAdminTest(t, remote, local)
	token := testutil.DefaultTestToken()

	ctx := testCtx()
	for _, name := range []string{"Alice", "Bob"} {
		a := &entity.Appraiser{ID: "apr-" + name, Name: name}
		if err := local.SaveAppraiser(ctx, a); err != nil {
			t.Fatalf("seed appraiser: %v", err)
		}
	}
	testutil.SeedTestCase(t, local, "case-local", entity.StatusCertified)

	w := testutil.DoRequest(router, "POST", "/api/v1/admin/sync", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["appraisers"].(float64) != 2 || data["cases"].(float64) != 1 {
		t.Fatalf("unexpected sync report: %+v", data)
	}

	appraisers, err := remote.ListAppraisers(ctx)
	if err != nil || len(appraisers) != 2 {
		t.Fatalf("expected 2 appraisers on remote, got %d (%v)", len(appraisers), err)
	}
	if _, err := remote.GetCase(ctx, "case-local"); err != nil {
		t.Fatalf("expected case replayed to remote: %v", err)
	}

	// replay is idempotent
	w = testutil.DoRequest(router, "POST", "/api/v1/admin/sync", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("repeat sync: expected 200, got %d", w.Code)
	}
	appraisers, _ = remote.ListAppraisers(ctx)
	if len(appraisers) != 2 {
		t.Fatalf("repeat sync duplicated appraisers: %d", len(appraisers))
	}
}

func TestAdminStatus(t *testing.T) {
	local := testutil.SetupLocalStore(t)
	remote := testutil.SetupRecordStore(t)
	router := setupAdminTest(t, remote, local)

	testutil.SeedTestCase(t, remote, "case-1", entity.StatusCertified)

	w := testutil.DoRequest(router, "GET", "/api/v1/admin/status", nil, testutil.DefaultTestToken())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["backend"] != "remote" || data["store_ok"] != true {
		t.Fatalf("unexpected status payload: %+v", data)
	}
	if data["cases"].(float64) != 1 {
		t.Fatalf("expected 1 case counted, got %v", data["cases"])
	}
}

func TestBrandSettingRoundTrip(t *testing.T) {
	local := testutil.SetupLocalStore(t)
	router := setupAdminTest(t, local, local)
	token := testutil.DefaultTestToken()

	// falls back to the configured default before any write
	w := testutil.DoRequest(router, "GET", "/api/v1/settings/brand", nil, token)
	if brand := testutil.ParseResponse(w)["data"].(map[string]interface{})["brand"]; brand != "My Dealership" {
		t.Fatalf("expected default brand, got %v", brand)
	}

	w = testutil.DoRequest(router, "PUT", "/api/v1/settings/brand",
		map[string]string{"brand": "Sunset Motors"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = testutil.DoRequest(router, "GET", "/api/v1/settings/brand", nil, token)
	if brand := testutil.ParseResponse(w)["data"].(map[string]interface{})["brand"]; brand != "Sunset Motors" {
		t.Fatalf("expected updated brand, got %v", brand)
	}
}
