package public

import (
	"net/http"

	handlershared "github.com/wxpay-bridge/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

// CreateAppPayment APP 下单，直接返回签名后的调起参数
func (h *Handler) CreateAppPayment(c *gin.Context) {
	params, err := h.PaymentService.CreateAppPayment(c.Request.Context())
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	requestLog(c).Infow("app_payment_created", "client_ip", c.ClientIP(), "prepayid", params.Get("prepayid"))
	c.JSON(http.StatusOK, params)
}
