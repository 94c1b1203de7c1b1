package admin

import (
	"github.com/wxpay-bridge/internal/authz"
	"github.com/wxpay-bridge/internal/provider"
	"github.com/wxpay-bridge/internal/service"
)

// Handler 管理端接口：登录鉴权、网关运维操作与审计查询
type Handler struct {
	PaymentService *service.PaymentService
	AuthService    *service.AuthService
	AuthzService   *authz.Service
}

// New 从容器取出管理端所需的服务
func New(c *provider.Container) *Handler {
	return &Handler{
		PaymentService: c.PaymentService,
		AuthService:    c.AuthService,
		AuthzService:   c.AuthzService,
	}
}
