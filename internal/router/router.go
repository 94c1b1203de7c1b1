package router

import (
	"sort"
	"strings"

	"github.com/wxpay-bridge/internal/authz"
	"github.com/wxpay-bridge/internal/cache"
	"github.com/wxpay-bridge/internal/config"
	adminhandlers "github.com/wxpay-bridge/internal/http/handlers/admin"
	publichandlers "github.com/wxpay-bridge/internal/http/handlers/public"
	"github.com/wxpay-bridge/internal/http/response"
	"github.com/wxpay-bridge/internal/logger"
	"github.com/wxpay-bridge/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisClient := cache.Client()
	payRule := RateLimitRule{
		Prefix:        "wechat",
		WindowSeconds: cfg.Security.PayRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.PayRateLimit.MaxRequests,
	}
	adminLoginRule := RateLimitRule{
		Prefix:        "admin_login",
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxRequests,
		Message:       "登录尝试过于频繁，请 %d 秒后再试",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(MetricsMiddleware(c.Metrics))

	// 健康检查与指标
	r.GET("/healthz", publicHandler.Healthz)
	r.GET("/metrics", gin.WrapH(c.Metrics.Handler()))

	// APP 下单与支付通知
	r.GET("/wechat", RateLimitMiddleware(redisClient, payRule, KeyByIP), publicHandler.CreateAppPayment)
	r.POST("/pay", publicHandler.HandlePayNotify)
	r.GET("/oauth/access-token", publicHandler.GetOAuthAccessToken)

	// 管理端 API
	adminGroup := r.Group("/api/v1/admin")
	adminGroup.Use(CORSMiddleware(cfg.CORS))
	{
		adminGroup.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIPAndJSONField("username")), adminHandler.AdminLogin)

		authorized := adminGroup.Group("")
		authorized.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
		authorized.Use(AdminRBACMiddleware(c.AuthzService))
		{
			authorized.GET("/me", adminHandler.GetCurrentAdmin)
			authorized.GET("/permissions", func(ctx *gin.Context) {
				response.Success(ctx, buildAdminPermissionCatalog(r))
			})

			// 订单
			authorized.GET("/orders/:out_trade_no", adminHandler.GetOrder)
			authorized.POST("/orders/:out_trade_no/close", adminHandler.CloseOrder)

			// 退款
			authorized.POST("/refunds", adminHandler.CreateRefund)
			authorized.GET("/refunds/:out_refund_no", adminHandler.GetRefund)

			// 企业付款
			authorized.POST("/transfers", adminHandler.CreateTransfer)
			authorized.GET("/transfers/:partner_trade_no", adminHandler.GetTransfer)

			// 审计
			authorized.GET("/exchanges", adminHandler.GetExchanges)
			authorized.GET("/notifications", adminHandler.GetNotifications)
		}
	}

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		if item.Path == "/api/v1/admin/login" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	return segments[1]
}
