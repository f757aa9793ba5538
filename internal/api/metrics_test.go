package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"support-chat-backend/internal/queue"
)

func TestEachServerRegistersItsOwnCollectors(t *testing.T) {
	queueManager := queue.NewRequestQueueManager(4, 1)
	t.Cleanup(queueManager.Shutdown)

	// A second server with the same listen address must not collide on
	// collector registration.
	NewAPIServer(":0", queueManager, nil, nil)
	server := NewAPIServer(":0", queueManager, nil, nil)

	handler := server.metrics.instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/v1/health", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("instrumented handler returned %d", rec.Code)
	}

	metricsRec := httptest.NewRecorder()
	server.metrics.metricsHandler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if body := metricsRec.Body.String(); !strings.Contains(body, "support_chat_http_requests_total") {
		t.Fatalf("metrics output is missing the request counter:\n%s", body)
	}
}
