package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"controlling_dehumidifier/internal/logger"
	"controlling_dehumidifier/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedHandler(s *service.Service) (*gin.Engine, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, &logger.Logger{SugaredLogger: zap.New(core).Sugar()})
	return h.InitRoutes(), logs
}

func TestInitRoutes_UnknownRouteIsJSON404(t *testing.T) {
	r := newTestRouter(&service.Service{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	if got := w.Body.String(); got != `{"error":"route not found"}` {
		t.Fatalf("body=%s", got)
	}
}

func TestInitRoutes_StreamRequiresToken(t *testing.T) {
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before upgrade, got %d", w.Code)
	}
}

func TestAccessLog(t *testing.T) {
	mon := &mockMonitoring{err: errors.New("db down")}
	r, logs := observedHandler(&service.Service{Authorization: &mockAuth{parseID: 4}, Monitoring: mon})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dehumidifier/state", nil)
	req.Header.Set("Authorization", "Bearer t")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("state status=%d", w.Code)
	}

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 2 {
		t.Fatalf("want 2 access lines, got %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel || entries[0].ContextMap()["path"] != "/health" {
		t.Fatalf("health line: %v %v", entries[0].Level, entries[0].ContextMap())
	}
	failed := entries[1].ContextMap()
	if entries[1].Level != zapcore.WarnLevel || failed["status"] != int64(http.StatusInternalServerError) {
		t.Fatalf("failed line: %v %v", entries[1].Level, failed)
	}
	if failed["user_id"] != int64(4) {
		t.Fatalf("user_id missing from access line: %v", failed)
	}
}
