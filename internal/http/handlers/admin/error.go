package admin

import (
	"errors"

	handlershared "github.com/wxpay-bridge/internal/http/handlers/shared"
	"github.com/wxpay-bridge/internal/payment/wxpay"
	"github.com/wxpay-bridge/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

// respondGatewayError 网关拒绝时附带原始结果返回
func respondGatewayError(c *gin.Context, result wxpay.Params, err error) {
	code, msg := handlershared.MapServiceError(err)
	if errors.Is(err, service.ErrGatewayRejected) && result != nil {
		handlershared.RespondGatewayRejected(c, msg, result, err)
		return
	}
	handlershared.RespondError(c, code, msg, err)
}
