package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMiddlewareRecordsRequestTotalAndDuration(t *testing.T) {
	m := NewHTTPServerMetrics("qa")
	handler := m.Middleware("qa", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/query", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	body := scrape(t, m)
	if !strings.Contains(body, `qa_http_requests_total{method="POST",path="/v1/query",service="qa",status="200"} 1`) {
		t.Fatalf("expected request total metric, got:\n%s", body)
	}
}

func TestRecordStageDurationObservesHistogram(t *testing.T) {
	m := NewHTTPServerMetrics("qa")
	m.RecordStageDuration("qa", "retrieve_findings", 15*time.Millisecond)

	body := scrape(t, m)
	if !strings.Contains(body, `qa_stage_duration_seconds_count{service="qa",stage="retrieve_findings"} 1`) {
		t.Fatalf("expected stage duration observation, got:\n%s", body)
	}
}

func TestRecordBackendUnavailableIncrementsCounter(t *testing.T) {
	m := NewHTTPServerMetrics("qa")
	m.RecordBackendUnavailable("qa", "vector")
	m.RecordBackendUnavailable("qa", "vector")

	body := scrape(t, m)
	if !strings.Contains(body, `qa_backend_unavailable_total{backend="vector",service="qa"} 2`) {
		t.Fatalf("expected backend_unavailable_total=2, got:\n%s", body)
	}
}

func TestRecordEmptyDocSetIncrementsCounter(t *testing.T) {
	m := NewHTTPServerMetrics("qa")
	m.RecordEmptyDocSet()

	body := scrape(t, m)
	if !strings.Contains(body, `qa_retrieval_empty_doc_set_total{service="qa"} 1`) {
		t.Fatalf("expected empty_doc_set_total=1, got:\n%s", body)
	}
}

func scrape(t *testing.T, m *HTTPServerMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}
