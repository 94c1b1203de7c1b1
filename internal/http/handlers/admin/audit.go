package admin

import (
	"strconv"

	handlershared "github.com/wxpay-bridge/internal/http/handlers/shared"
	"github.com/wxpay-bridge/internal/http/response"
	"github.com/wxpay-bridge/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetExchanges 网关调用审计列表
func (h *Handler) GetExchanges(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)
	createdFrom, ok := handlershared.ParseTimeParam(c.Query("created_from"))
	if !ok {
		respondError(c, response.CodeBadRequest, "created_from 格式错误", nil)
		return
	}
	createdTo, ok := handlershared.ParseTimeParam(c.Query("created_to"))
	if !ok {
		respondError(c, response.CodeBadRequest, "created_to 格式错误", nil)
		return
	}

	rows, total, err := h.PaymentService.ListExchanges(repository.ExchangeListFilter{
		Page:        page,
		PageSize:    pageSize,
		Operation:   c.Query("operation"),
		Reference:   c.Query("reference"),
		Outcome:     c.Query("outcome"),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询调用记录失败", err)
		return
	}
	response.SuccessWithPage(c, rows, handlershared.BuildPagination(page, pageSize, total))
}

// GetNotifications 支付通知流水列表
func (h *Handler) GetNotifications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)
	verified, ok := handlershared.ParseBoolParam(c.Query("verified"))
	if !ok {
		respondError(c, response.CodeBadRequest, "verified 格式错误", nil)
		return
	}
	createdFrom, ok := handlershared.ParseTimeParam(c.Query("created_from"))
	if !ok {
		respondError(c, response.CodeBadRequest, "created_from 格式错误", nil)
		return
	}
	createdTo, ok := handlershared.ParseTimeParam(c.Query("created_to"))
	if !ok {
		respondError(c, response.CodeBadRequest, "created_to 格式错误", nil)
		return
	}

	rows, total, err := h.PaymentService.ListNotifications(repository.NotificationListFilter{
		Page:          page,
		PageSize:      pageSize,
		Status:        c.Query("status"),
		OutTradeNo:    c.Query("out_trade_no"),
		TransactionID: c.Query("transaction_id"),
		OpenID:        c.Query("openid"),
		Verified:      verified,
		CreatedFrom:   createdFrom,
		CreatedTo:     createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询通知流水失败", err)
		return
	}
	response.SuccessWithPage(c, rows, handlershared.BuildPagination(page, pageSize, total))
}
