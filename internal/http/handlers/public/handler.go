package public

import (
	"github.com/wxpay-bridge/internal/provider"
	"github.com/wxpay-bridge/internal/service"
)

// Handler 公开接口：APP 下单、支付结果通知与网页授权
type Handler struct {
	PaymentService *service.PaymentService
	OAuthService   *service.OAuthService
	// NotifyReplyXML 通知应答使用 XML 报文而非空 200
	NotifyReplyXML bool
}

// New 从容器取出公开接口所需的服务
func New(c *provider.Container) *Handler {
	h := &Handler{
		PaymentService: c.PaymentService,
		OAuthService:   c.OAuthService,
	}
	if c.Config != nil {
		h.NotifyReplyXML = c.Config.Notify.ReplyXML
	}
	return h
}
