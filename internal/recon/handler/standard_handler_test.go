package handler

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dealerkit/recon/internal/recon/service"
	"github.com/dealerkit/recon/internal/recon/store"
	"github.com/dealerkit/recon/internal/recon/testutil"
	"github.com/dealerkit/recon/internal/shared/genai"
)

func testCtx() context.Context {
	return context.Background()
}

func setupStandardTest(t *testing.T, aiURL string) (*gin.Engine, store.RecordStore) {
	t.Helper()
	rs := testutil.SetupRecordStore(t)

	var ai *genai.Client
	if aiURL != "" {
		ai = genai.NewClient("test-key", "")
		ai.BaseURL = aiURL
	}

	h := NewStandardHandler(service.NewStandardService(rs, ai, zap.NewNop()))

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	standards := api.Group("/standards")
	standards.GET("", h.List)
	standards.POST("", h.Upload)
	standards.DELETE("/:type", h.Delete)

	return router, rs
}

// uploadStandard posts a multipart standard document upload
func uploadStandard(t *testing.T, router *gin.Engine, docType, filename, content, token string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("type", docType)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte(content))
	writer.Close()

	req, _ := http.NewRequest("POST", "/api/v1/standards", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStandardUploadReplacesSameType(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&calls, 1)
		text := fmt.Sprintf("RULESET v%d: brake pad minimum 5mm, tire tread minimum 4mm, no frame damage.", n)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"candidates": [{"content": {"parts": [{"text": %q}]}}]}`, text)
	}))
	defer srv.Close()

	router, rs := setupStandardTest(t, srv.URL)
	token := testutil.DefaultTestToken()

	w := uploadStandard(t, router, "safety", "safety-v1.pdf", "pdf bytes v1", token)
	if w.Code != http.StatusCreated {
		t.Fatalf("first upload: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	firstID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = uploadStandard(t, router, "safety", "safety-v2.pdf", "pdf bytes v2", token)
	if w.Code != http.StatusCreated {
		t.Fatalf("second upload: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	docs, err := rs.ListStandards(testCtx())
	if err != nil {
		t.Fatalf("ListStandards: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("same-type upload must replace, got %d docs", len(docs))
	}
	if docs[0].FileName != "safety-v2.pdf" {
		t.Fatalf("expected newest file name to win, got %s", docs[0].FileName)
	}
	if docs[0].ExtractedRules != "RULESET v2: brake pad minimum 5mm, tire tread minimum 4mm, no frame damage." {
		t.Fatalf("expected second digest to win, got %q", docs[0].ExtractedRules)
	}
	// upsert keeps the original row identity
	if docs[0].ID != firstID {
		t.Fatalf("expected original row ID %s to survive, got %s", firstID, docs[0].ID)
	}
}

func TestStandardUploadInvalidType(t *testing.T) {
	router, _ := setupStandardTest(t, "http://127.0.0.1:0")
	token := testutil.DefaultTestToken()

	w := uploadStandard(t, router, "blueprint", "doc.pdf", "content", token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", w.Code)
	}
}

func TestStandardUploadWithoutAI(t *testing.T) {
	router, _ := setupStandardTest(t, "")
	token := testutil.DefaultTestToken()

	w := uploadStandard(t, router, "safety", "doc.pdf", "content", token)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 when ai is not configured, got %d", w.Code)
	}
}

func TestStandardDelete(t *testing.T) {
	srv := stubAI(t, "RULESET: certified vehicle must pass the 150-point inspection checklist.")
	router, rs := setupStandardTest(t, srv.URL)
	token := testutil.DefaultTestToken()

	if w := uploadStandard(t, router, "safety", "doc.pdf", "content", token); w.Code != http.StatusCreated {
		t.Fatalf("upload: %d", w.Code)
	}

	w := testutil.DoRequest(router, "DELETE", "/api/v1/standards/safety", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	docs, _ := rs.ListStandards(testCtx())
	if len(docs) != 0 {
		t.Fatalf("expected 0 docs after delete, got %d", len(docs))
	}

	// delete is idempotent, unknown type is not
	if w := testutil.DoRequest(router, "DELETE", "/api/v1/standards/safety", nil, token); w.Code != http.StatusOK {
		t.Fatalf("repeat delete: expected 200, got %d", w.Code)
	}
	if w := testutil.DoRequest(router, "DELETE", "/api/v1/standards/blueprint", nil, token); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown type delete: expected 400, got %d", w.Code)
	}
}
