package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dealerkit/recon/internal/recon/entity"
	"github.com/dealerkit/recon/internal/recon/service"
	"github.com/dealerkit/recon/internal/recon/store"
	"github.com/dealerkit/recon/internal/recon/testutil"
	"github.com/dealerkit/recon/internal/shared/genai"
	"github.com/dealerkit/recon/internal/shared/vin"
)

// stubAI returns a genai stub server answering every request with the given report text
func stubAI(t *testing.T, reportText string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"candidates": [{"content": {"parts": [{"text": %q}]}}]}`, reportText)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupCaseTest(t *testing.T, aiURL string) (*gin.Engine, store.RecordStore) {
	t.Helper()
	rs := testutil.SetupRecordStore(t)
	logger := zap.NewNop()

	var ai *genai.Client
	if aiURL != "" {
		ai = genai.NewClient("test-key", "")
		ai.BaseURL = aiURL
	}

	caseSvc := service.NewCaseService(rs, vin.NewClient(logger), logger)
	analysisSvc := service.NewAnalysisService(rs, ai, logger)
	h := NewCaseHandler(caseSvc, analysisSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")

	cases := api.Group("/cases")
	cases.GET("", h.List)
	cases.POST("/analyze", h.Analyze)
	cases.GET("/:id", h.Get)
	cases.PUT("/:id", h.Update)
	cases.DELETE("/:id", h.Delete)
	cases.PUT("/:id/status", h.UpdateStatus)
	cases.GET("/:id/history", h.History)
	api.POST("/intake/recommend-program", h.RecommendProgram)

	return router, rs
}

func TestCaseRoutesRequireAuth(t *testing.T) {
	router, _ := setupCaseTest(t, "")

	w := testutil.DoRequest(router, "GET", "/api/v1/cases", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestAnalyzeCreatesCase(t *testing.T) {
	ai := stubAI(t, "Brake pads and tires need work. [DETECTED_TOTAL: 2,350]")
	router, rs := setupCaseTest(t, ai.URL)
	token := testutil.DefaultTestToken()

	req := service.AnalyzeRequest{
		Mode: entity.ModeAudit,
		Vehicle: entity.Vehicle{
			VIN:        "1HGBH41JXMN109186",
			Year:       time.Now().Year() - 2,
			Make:       "Honda",
			Model:      "Civic",
			OdometerKM: 45000,
		},
		Data: entity.InspectionData{
			ServiceNotes:    "brake pads worn",
			ManagerNotes:    "minor curb rash",
			ServiceEstimate: 2500,
			ManagerEstimate: 1800,
			TargetProgram:   entity.StatusTopTier,
			TechnicianName:  "Dana",
		},
	}

	w := testutil.DoRequest(router, "POST", "/api/v1/cases/analyze", req, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["detected_total"].(float64) != 2350 {
		t.Fatalf("expected detected_total 2350, got %v", data["detected_total"])
	}
	if data["current_status"] != string(entity.StatusTopTier) {
		t.Fatalf("expected status top_tier, got %v", data["current_status"])
	}

	// persisted immediately
	cases, err := rs.ListCases(testCtx())
	if err != nil || len(cases) != 1 {
		t.Fatalf("expected 1 persisted case, got %d (%v)", len(cases), err)
	}
}

func TestAnalyzeAutoDowngradesIneligibleTarget(t *testing.T) {
	ai := stubAI(t, "Report. [DETECTED_TOTAL: 900]")
	router, _ := setupCaseTest(t, ai.URL)
	token := testutil.DefaultTestToken()

	req := service.AnalyzeRequest{
		Mode: entity.ModeAppraisal,
		Vehicle: entity.Vehicle{
			VIN:        "1HGBH41JXMN109186",
			Year:       time.Now().Year() - 8, // too old for top tier
			Make:       "Honda",
			Model:      "Civic",
			OdometerKM: 90000,
		},
		Data: entity.InspectionData{TargetProgram: entity.StatusTopTier},
	}

	w := testutil.DoRequest(router, "POST", "/api/v1/cases/analyze", req, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["current_status"] != string(entity.StatusMidTier) {
		t.Fatalf("expected auto-downgrade to mid_tier, got %v", data["current_status"])
	}
}

func TestAnalyzeFailureLeavesNoState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	router, rs := setupCaseTest(t, srv.URL)
	token := testutil.DefaultTestToken()

	req := service.AnalyzeRequest{
		Mode:    entity.ModeAudit,
		Vehicle: entity.Vehicle{VIN: "1HGBH41JXMN109186", Year: time.Now().Year() - 1, Make: "Honda", Model: "Civic"},
		Data:    entity.InspectionData{},
	}

	w := testutil.DoRequest(router, "POST", "/api/v1/cases/analyze", req, token)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on ai failure, got %d", w.Code)
	}
	cases, _ := rs.ListCases(testCtx())
	if len(cases) != 0 {
		t.Fatalf("failed analysis must not persist a case, got %d", len(cases))
	}
}

func TestUpdateStatusFlow(t *testing.T) {
	router, rs := setupCaseTest(t, "")
	token := testutil.DefaultTestToken()
	testutil.SeedTestCase(t, rs, "case-1", entity.StatusCertified)

	// upgrade
	w := testutil.DoRequest(router, "PUT", "/api/v1/cases/case-1/status",
		map[string]string{"status": "top_tier"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got, err := rs.GetCase(testCtx(), "case-1")
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if got.CurrentStatus != entity.StatusTopTier || len(got.History) != 1 {
		t.Fatalf("unexpected state after upgrade: status=%s history=%d", got.CurrentStatus, len(got.History))
	}
	if got.History[0].Type != entity.TransitionUpgrade {
		t.Fatalf("expected upgrade classification, got %s", got.History[0].Type)
	}

	// idempotent no-op
	w = testutil.DoRequest(router, "PUT", "/api/v1/cases/case-1/status",
		map[string]string{"status": "top_tier"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for no-op, got %d", w.Code)
	}
	got, _ = rs.GetCase(testCtx(), "case-1")
	if len(got.History) != 1 {
		t.Fatalf("no-op transition appended history: %d", len(got.History))
	}

	// unknown status rejected before the engine runs
	w = testutil.DoRequest(router, "PUT", "/api/v1/cases/case-1/status",
		map[string]string{"status": "platinum"}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}

	// missing case
	w = testutil.DoRequest(router, "PUT", "/api/v1/cases/missing/status",
		map[string]string{"status": "wholesale"}, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing case, got %d", w.Code)
	}
}

func TestUpdateStatusIneligibleRejected(t *testing.T) {
	router, rs := setupCaseTest(t, "")
	token := testutil.DefaultTestToken()

	c := testutil.SeedTestCase(t, rs, "case-old", entity.StatusCertified)
	c.Vehicle.Year = time.Now().Year() - 12
	if err := rs.SaveCase(testCtx(), c); err != nil {
		t.Fatalf("SaveCase: %v", err)
	}

	w := testutil.DoRequest(router, "PUT", "/api/v1/cases/case-old/status",
		map[string]string{"status": "top_tier"}, token)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}

	got, _ := rs.GetCase(testCtx(), "case-old")
	if got.CurrentStatus != entity.StatusCertified || len(got.History) != 0 {
		t.Fatalf("rejected transition mutated case: status=%s history=%d", got.CurrentStatus, len(got.History))
	}
}

func TestCaseHistoryEndpoint(t *testing.T) {
	router, rs := setupCaseTest(t, "")
	token := testutil.DefaultTestToken()
	testutil.SeedTestCase(t, rs, "case-h", entity.StatusCertified)

	for _, status := range []string{"top_tier", "wholesale"} {
		w := testutil.DoRequest(router, "PUT", "/api/v1/cases/case-h/status",
			map[string]string{"status": status}, token)
		if w.Code != http.StatusOK {
			t.Fatalf("transition to %s: %d", status, w.Code)
		}
	}

	w := testutil.DoRequest(router, "GET", "/api/v1/cases/case-h/history", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(items))
	}
	last := items[1].(map[string]interface{})
	if last["to"] != "wholesale" || last["type"] != "downgrade" {
		t.Fatalf("unexpected last entry %+v", last)
	}
}

func TestRecommendProgram(t *testing.T) {
	router, _ := setupCaseTest(t, "")
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(router, "POST", "/api/v1/intake/recommend-program",
		map[string]interface{}{"year": time.Now().Year() - 8, "odometer_km": 90000}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if program := resp["data"].(map[string]interface{})["program"]; program != "mid_tier" {
		t.Fatalf("expected mid_tier, got %v", program)
	}
}

// fullStore fails every case write with the storage-quota error
type fullStore struct {
	*store.SQLStore
}

func (s *fullStore) SaveCase(ctx context.Context, c *entity.InspectionCase) error {
	return fmt.Errorf("%w: unable to write: SQLITE_FULL", store.ErrQuotaExceeded)
}

func TestUpdateStatusQuotaExceeded(t *testing.T) {
	rs := testutil.SetupRecordStore(t)
	testutil.SeedTestCase(t, rs, "case-q", entity.StatusCertified)

	logger := zap.NewNop()
	caseSvc := service.NewCaseService(&fullStore{rs}, vin.NewClient(logger), logger)
	h := NewCaseHandler(caseSvc, service.NewAnalysisService(rs, nil, logger))

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.PUT("/cases/:id/status", h.UpdateStatus)

	w := testutil.DoRequest(router, "PUT", "/api/v1/cases/case-q/status",
		map[string]string{"status": "top_tier"}, testutil.DefaultTestToken())
	if w.Code != http.StatusInsufficientStorage {
		t.Fatalf("expected 507 when local storage is full, got %d: %s", w.Code, w.Body.String())
	}
	if testutil.ParseResponse(w)["code"].(float64) != 50700 {
		t.Fatalf("expected envelope code 50700, got %s", w.Body.String())
	}

	// the stored case is untouched
	got, err := rs.GetCase(testCtx(), "case-q")
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if got.CurrentStatus != entity.StatusCertified || len(got.History) != 0 {
		t.Fatalf("failed write mutated case: status=%s history=%d", got.CurrentStatus, len(got.History))
	}
}
