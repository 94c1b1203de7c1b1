package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wxpay-bridge/internal/config"
	"github.com/wxpay-bridge/internal/http/response"
	"github.com/wxpay-bridge/internal/metrics"
	"github.com/wxpay-bridge/internal/models"
	"github.com/wxpay-bridge/internal/repository"
	"github.com/wxpay-bridge/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestAdminCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	admin := r.Group("/api/v1/admin")
	admin.Use(CORSMiddleware(config.CORSConfig{
		AllowedOrigins:   []string{"https://ops.example.com"},
		AllowCredentials: true,
		MaxAge:           600,
	}))
	admin.POST("/login", func(c *gin.Context) { response.Success(c, nil) })
	admin.OPTIONS("/login", func(c *gin.Context) {})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/admin/login", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status want 204 got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Fatalf("allowed origin should be echoed, got %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" || w.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("credential and max-age headers missing: %v", w.Header())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin should not be allowed, got %q", got)
	}

	if got := resolveAllowedOrigin("https://ops.example.com", []string{"*"}, false); got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}
}

func TestRequestIDReachesErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/wechat", func(c *gin.Context) {
		response.Error(c, response.CodeBadGateway, "支付网关请求失败")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/wechat", nil)
	req.Header.Set(requestIDHeader, "req-wechat-1")
	r.ServeHTTP(w, req)

	if w.Header().Get(requestIDHeader) != "req-wechat-1" {
		t.Fatalf("response request id want req-wechat-1 got %s", w.Header().Get(requestIDHeader))
	}
	var resp struct {
		StatusCode int               `json:"status_code"`
		Data       map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.StatusCode != response.CodeBadGateway || resp.Data["request_id"] != "req-wechat-1" {
		t.Fatalf("error envelope should carry the request id: %+v", resp)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wechat", nil))
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("request id should be generated when absent")
	}
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New(prometheus.NewRegistry())
	r := gin.New()
	r.Use(MetricsMiddleware(m))
	r.GET("/api/v1/admin/orders/:out_trade_no", func(c *gin.Context) { response.Success(c, nil) })

	for _, path := range []string{"/api/v1/admin/orders/202401020304050001", "/api/v1/admin/orders/202401020304050002", "/favicon.ico"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "/api/v1/admin/orders/:out_trade_no", "200")); got != 2 {
		t.Fatalf("order route requests want 2 got %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched requests want 1 got %v", got)
	}
}

func TestJWTAuthMiddlewareRejectsAdminRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupMiddlewareDB(t)
	const secret = "middleware-test-secret-0123456789abcdef"

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, service.JWTClaims{
		AdminID:  1,
		Username: "ops",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("another-secret"))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}

	cases := []struct {
		name   string
		secret string
		header string
	}{
		{name: "missing secret", secret: "", header: "Bearer x"},
		{name: "missing header", secret: secret},
		{name: "wrong scheme", secret: secret, header: "Basic b3BzOm9wcw=="},
		{name: "forged token", secret: secret, header: "Bearer " + forged},
	}
	for _, tc := range cases {
		r := gin.New()
		r.Use(JWTAuthMiddleware(tc.secret, repository.NewAdminRepository(db)))
		r.POST("/api/v1/admin/refunds", func(c *gin.Context) { response.Success(c, nil) })

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/refunds", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(w, req)

		var resp struct {
			StatusCode int `json:"status_code"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: unmarshal response failed: %v", tc.name, err)
		}
		if w.Code != http.StatusOK || resp.StatusCode != response.CodeUnauthorized {
			t.Fatalf("%s: want status_code 401 got http=%d code=%d", tc.name, w.Code, resp.StatusCode)
		}
	}
}

func setupMiddlewareDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_middleware_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}
