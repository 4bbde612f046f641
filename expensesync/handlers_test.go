package expensesync

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func performRequest(handler gin.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if idx := strings.Index(target, "/runs/"); idx >= 0 {
		c.Params = gin.Params{{Key: "id", Value: target[idx+len("/runs/"):]}}
	}
	handler(c)
	return w
}

func TestFlagUpdateHandler_MissingExpenseId(t *testing.T) {
	w := performRequest(FlagUpdateHandler(), http.MethodPost, "/api/expenses/flag", `{"flagCategory":"Personal"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestApprovalUpdateHandler_InvalidStatus(t *testing.T) {
	w := performRequest(ApprovalUpdateHandler(), http.MethodPost, "/api/expenses/approval", `{"expenseId":1,"approvalStatus":"maybe"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestApprovalUpdateHandler_MissingExpenseId(t *testing.T) {
	w := performRequest(ApprovalUpdateHandler(), http.MethodPost, "/api/expenses/approval", `{"approvalStatus":"approved"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRunSync_RejectsMalformedFromDate(t *testing.T) {
	svc := NewService(nil, nil, nil)
	w := performRequest(svc.SyncERPHandler(), http.MethodPost, "/api/sync/erp", `{"fromDate":"30-01-2026"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLastSuccessHandler_RejectsUnknownSource(t *testing.T) {
	w := performRequest(LastSuccessHandler(), http.MethodGet, "/api/sync/last-success?source=SAP", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestScheduleSyncHandler_RequiresValidSource(t *testing.T) {
	w := performRequest(ScheduleSyncHandler(), http.MethodPost, "/api/sync/schedule?source=LEDGER", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSyncRunDetailHandler_RejectsNonNumericId(t *testing.T) {
	w := performRequest(SyncRunDetailHandler(), http.MethodGet, "/api/sync/runs/latest", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
