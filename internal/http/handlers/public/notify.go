package public

import (
	"errors"
	"io"
	"net/http"

	"github.com/wxpay-bridge/internal/payment/wxpay"
	"github.com/wxpay-bridge/internal/service"

	"github.com/gin-gonic/gin"
)

const maxNotifyBodyBytes = 1 << 20

// HandlePayNotify 支付结果通知
// 验签失败或报文无法解析返回 400，网关会继续重推。
func (h *Handler) HandlePayNotify(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotifyBodyBytes))
	if err != nil {
		log.Warnw("pay_notify_body_read_failed", "error", err)
		h.respondNotify(c, http.StatusBadRequest, "读取报文失败")
		return
	}
	log.Infow("pay_notify_received", "client_ip", c.ClientIP(), "body_size", len(body))

	result, err := h.PaymentService.HandleNotify(c.Request.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotifySignatureInvalid):
			h.respondNotify(c, http.StatusBadRequest, "签名错误")
		case errors.Is(err, service.ErrNotifyInvalid):
			h.respondNotify(c, http.StatusBadRequest, "报文格式错误")
		default:
			log.Errorw("pay_notify_handle_failed", "error", err)
			h.respondNotify(c, http.StatusInternalServerError, "处理失败")
		}
		return
	}
	log.Infow("pay_notify_processed",
		"notification_id", result.Notification.ID,
		"status", result.Notification.Status,
		"duplicate", result.Duplicate,
	)
	if len(result.Ack) > 0 {
		c.Data(http.StatusOK, "text/xml; charset=utf-8", result.Ack)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) respondNotify(c *gin.Context, status int, msg string) {
	if h.NotifyReplyXML {
		c.Data(status, "text/xml; charset=utf-8", wxpay.NotifyAck(false, msg))
		return
	}
	c.Status(status)
}
