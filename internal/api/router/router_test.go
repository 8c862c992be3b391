package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dmgrok/unconference/config"
	"github.com/dmgrok/unconference/internal/api/handler"
	"github.com/dmgrok/unconference/internal/service"
	"github.com/dmgrok/unconference/pkg/jwt"
	"github.com/dmgrok/unconference/pkg/metrics"
)

func setupTestRouter(t *testing.T, metricsEnabled bool) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "router-test-secret-0123456789abcdef",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: time.Hour,
			GuestTokenTTL:   time.Hour,
		},
		Metrics: config.MetricsConfig{Enabled: metricsEnabled, Namespace: "routertest"},
	}
	cfg.Server.CORS.AllowOrigins = []string{"http://localhost:5173"}

	h := handler.NewHandler(&service.Service{}, nil)
	engine, err := Setup(cfg, h, jwt.NewManager(&cfg.Auth), nil, metrics.New(cfg.Metrics.Namespace), zap.NewNop())
	if err != nil {
		t.Fatalf("Setup 应成功: %v", err)
	}
	return engine
}

func TestSetup_RegistersRoutes(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "router-test-secret-0123456789abcdef"}}
	h := handler.NewHandler(&service.Service{}, nil)
	engine, err := Setup(cfg, h, jwt.NewManager(&cfg.Auth), nil, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Setup 应成功: %v", err)
	}

	registered := make(map[string]bool)
	for _, r := range engine.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	want := []string{
		"GET /health",
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/guest",
		"PUT /api/v1/auth/password",
		"PUT /api/v1/users/:id/role",
		"POST /api/v1/events",
		"POST /api/v1/events/join",
		"POST /api/v1/events/:id/round/start",
		"PUT /api/v1/events/:id/preferences",
		"POST /api/v1/topics/:id/vote",
		"PUT /api/v1/topics/:id/selection",
		"POST /api/v1/events/:id/rooms/import",
		"POST /api/v1/events/:id/groups",
		"POST /api/v1/events/:id/groups/rebalance",
		"GET /api/v1/events/:id/groups/me",
		"GET /api/v1/events/:id/groups/export",
		"PUT /api/v1/system-config",
	}
	for _, route := range want {
		if !registered[route] {
			t.Errorf("缺少路由 %s", route)
		}
	}
	if registered["GET /metrics"] {
		t.Error("未启用指标时不应注册 /metrics")
	}
}

func TestSetup_HealthAndMetrics(t *testing.T) {
	engine := setupTestRouter(t, true)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际=%d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("响应应携带 X-Request-ID")
	}

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "routertest_http_requests_total") {
		t.Error("指标输出应包含 HTTP 请求计数")
	}
}

func TestSetup_ProtectedRoutesRequireToken(t *testing.T) {
	engine := setupTestRouter(t, false)

	for _, target := range []string{"/api/v1/events", "/api/v1/users/me", "/api/v1/system-config"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", target, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s 期望 401，实际=%d", target, w.Code)
		}
	}
}

func TestSetup_RoleGuard(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "router-test-secret-0123456789abcdef", AccessTokenTTL: time.Minute}}
	mgr := jwt.NewManager(&cfg.Auth)
	h := handler.NewHandler(&service.Service{}, nil)
	engine, err := Setup(cfg, h, mgr, nil, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Setup 应成功: %v", err)
	}

	token, err := mgr.GenerateAccessToken("p-1", "pat@example.com", "participant")
	if err != nil {
		t.Fatalf("签发 Token 失败: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/v1/events", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("参与者创建活动期望 403，实际=%d", w.Code)
	}
}
