package admin

import (
	handlershared "github.com/wxpay-bridge/internal/http/handlers/shared"
	"github.com/wxpay-bridge/internal/http/response"
	"github.com/wxpay-bridge/internal/service"

	"github.com/gin-gonic/gin"
)

// GetOrder 查询订单
func (h *Handler) GetOrder(c *gin.Context) {
	result, err := h.PaymentService.QueryOrder(c.Request.Context(), c.Param("out_trade_no"))
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"result": result.Params,
		"cached": result.Cached,
	})
}

// CloseOrder 关闭订单
func (h *Handler) CloseOrder(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	outTradeNo := c.Param("out_trade_no")
	result, err := h.PaymentService.CloseOrder(c.Request.Context(), outTradeNo)
	if err != nil {
		respondGatewayError(c, result, err)
		return
	}
	requestLog(c).Infow("admin_order_closed", "admin_id", adminID, "out_trade_no", outTradeNo)
	response.Success(c, gin.H{"result": result})
}

// CreateRefund 申请退款
func (h *Handler) CreateRefund(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req service.RefundInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	if req.OutTradeNo == "" && req.TransactionID == "" {
		respondError(c, response.CodeBadRequest, "out_trade_no 与 transaction_id 不能同时为空", nil)
		return
	}
	result, err := h.PaymentService.Refund(c.Request.Context(), req)
	if err != nil {
		respondGatewayError(c, result, err)
		return
	}
	requestLog(c).Infow("admin_refund_created",
		"admin_id", adminID,
		"out_trade_no", req.OutTradeNo,
		"out_refund_no", result.Get("out_refund_no"),
	)
	response.Success(c, gin.H{"result": result})
}

// GetRefund 查询退款
func (h *Handler) GetRefund(c *gin.Context) {
	result, err := h.PaymentService.QueryRefund(c.Request.Context(), c.Param("out_refund_no"))
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"result": result})
}

// CreateTransfer 企业付款
func (h *Handler) CreateTransfer(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req service.TransferInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	result, err := h.PaymentService.Transfer(c.Request.Context(), req)
	if err != nil {
		respondGatewayError(c, result, err)
		return
	}
	requestLog(c).Infow("admin_transfer_created",
		"admin_id", adminID,
		"partner_trade_no", result.Get("partner_trade_no"),
	)
	response.Success(c, gin.H{"result": result})
}

// GetTransfer 查询企业付款
func (h *Handler) GetTransfer(c *gin.Context) {
	result, err := h.PaymentService.QueryTransfer(c.Request.Context(), c.Param("partner_trade_no"))
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"result": result})
}
