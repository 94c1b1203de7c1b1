package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wxpay-bridge/internal/cache"
	"github.com/wxpay-bridge/internal/models"
	"github.com/wxpay-bridge/internal/payment/wxpay"
	"github.com/wxpay-bridge/internal/repository"

	"github.com/google/uuid"
)

// OrderQueryResult 订单查询结果
type OrderQueryResult struct {
	Params wxpay.Params
	Cached bool
}

// QueryOrder 查询订单，结果短暂缓存
func (s *PaymentService) QueryOrder(ctx context.Context, outTradeNo string) (*OrderQueryResult, error) {
	outTradeNo = strings.TrimSpace(outTradeNo)
	if outTradeNo == "" {
		return nil, fmt.Errorf("%w: out_trade_no is required", ErrPaymentParamsInvalid)
	}
	if cached, hit, err := cache.GetOrderQuery(ctx, outTradeNo); err == nil && hit {
		return &OrderQueryResult{Params: wxpay.Params(cached), Cached: true}, nil
	}
	result, err := s.gateway.OrderQuery(ctx, outTradeNo)
	if err != nil {
		return nil, mapGatewayError(err)
	}
	if result.IsEmpty() {
		return nil, ErrGatewaySignatureMismatch
	}
	if ttl := time.Duration(s.orderCfg.QueryCacheSecs) * time.Second; ttl > 0 {
		if err := cache.SetOrderQuery(ctx, outTradeNo, result, ttl); err != nil {
			paymentLogger("out_trade_no", outTradeNo).Warnw("order_query_cache_set_failed", "error", err)
		}
	}
	return &OrderQueryResult{Params: result}, nil
}

// evictOrderQuery 订单状态可能变化时清除查询缓存
func (s *PaymentService) evictOrderQuery(ctx context.Context, outTradeNo string) {
	if outTradeNo == "" {
		return
	}
	if err := cache.DelOrderQuery(ctx, outTradeNo); err != nil {
		paymentLogger("out_trade_no", outTradeNo).Warnw("order_query_cache_evict_failed", "error", err)
	}
}

// CloseOrder 关闭订单
func (s *PaymentService) CloseOrder(ctx context.Context, outTradeNo string) (wxpay.Params, error) {
	outTradeNo = strings.TrimSpace(outTradeNo)
	result, err := s.gateway.CloseOrder(ctx, outTradeNo)
	if err != nil {
		return nil, mapGatewayError(err)
	}
	s.evictOrderQuery(ctx, outTradeNo)
	if err := ensureAccepted(result); err != nil {
		return result, err
	}
	paymentLogger("out_trade_no", outTradeNo).Infow("order_closed")
	return result, nil
}

// RefundInput 退款输入，金额单位为元
type RefundInput struct {
	OutTradeNo    string `json:"out_trade_no"`
	TransactionID string `json:"transaction_id"`
	OutRefundNo   string `json:"out_refund_no"`
	TotalAmount   string `json:"total_amount" binding:"required"`
	RefundAmount  string `json:"refund_amount" binding:"required"`
	Reason        string `json:"reason"`
	NotifyURL     string `json:"notify_url"`
}

// Refund 申请退款
func (s *PaymentService) Refund(ctx context.Context, input RefundInput) (wxpay.Params, error) {
	totalFee, err := wxpay.YuanToFen(input.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: total_amount %v", ErrPaymentParamsInvalid, err)
	}
	refundFee, err := wxpay.YuanToFen(input.RefundAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: refund_amount %v", ErrPaymentParamsInvalid, err)
	}
	if refundFee > totalFee {
		return nil, fmt.Errorf("%w: refund_amount exceeds total_amount", ErrPaymentParamsInvalid)
	}
	outRefundNo := strings.TrimSpace(input.OutRefundNo)
	if outRefundNo == "" {
		outRefundNo = newRequestNo()
	}
	log := paymentLogger("out_trade_no", input.OutTradeNo, "out_refund_no", outRefundNo, "refund_fee", refundFee)

	result, err := s.gateway.Refund(ctx, wxpay.RefundRequest{
		OutTradeNo:    strings.TrimSpace(input.OutTradeNo),
		TransactionID: strings.TrimSpace(input.TransactionID),
		OutRefundNo:   outRefundNo,
		TotalFee:      totalFee,
		RefundFee:     refundFee,
		RefundDesc:    strings.TrimSpace(input.Reason),
		NotifyURL:     strings.TrimSpace(input.NotifyURL),
	})
	if err != nil {
		log.Warnw("refund_failed", "error", err)
		return nil, mapGatewayError(err)
	}
	if err := ensureAccepted(result); err != nil {
		log.Warnw("refund_rejected", "message", result.ErrorMessage())
		return result, err
	}
	s.evictOrderQuery(ctx, input.OutTradeNo)
	log.Infow("refund_submitted", "refund_id", result.Get("refund_id"))
	return result, nil
}

// QueryRefund 查询退款
func (s *PaymentService) QueryRefund(ctx context.Context, outRefundNo string) (wxpay.Params, error) {
	result, err := s.gateway.RefundQuery(ctx, strings.TrimSpace(outRefundNo))
	if err != nil {
		return nil, mapGatewayError(err)
	}
	if result.IsEmpty() {
		return nil, ErrGatewaySignatureMismatch
	}
	return result, nil
}

// TransferInput 企业付款输入，金额单位为元
type TransferInput struct {
	PartnerTradeNo string `json:"partner_trade_no"`
	OpenID         string `json:"openid" binding:"required"`
	Amount         string `json:"amount" binding:"required"`
	Desc           string `json:"desc"`
}

// Transfer 企业付款到零钱
func (s *PaymentService) Transfer(ctx context.Context, input TransferInput) (wxpay.Params, error) {
	amount, err := wxpay.YuanToFen(input.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %v", ErrPaymentParamsInvalid, err)
	}
	partnerTradeNo := strings.TrimSpace(input.PartnerTradeNo)
	if partnerTradeNo == "" {
		partnerTradeNo = newRequestNo()
	}
	desc := strings.TrimSpace(input.Desc)
	if desc == "" {
		desc = s.orderCfg.TransferDesc
	}
	log := paymentLogger("partner_trade_no", partnerTradeNo, "amount", amount)

	result, err := s.gateway.Transfers(ctx, wxpay.TransferRequest{
		PartnerTradeNo: partnerTradeNo,
		OpenID:         strings.TrimSpace(input.OpenID),
		Amount:         amount,
		Desc:           desc,
		SpbillCreateIP: s.localIP,
	})
	if err != nil {
		log.Warnw("transfer_failed", "error", err)
		return nil, mapGatewayError(err)
	}
	if err := ensureAccepted(result); err != nil {
		log.Warnw("transfer_rejected", "message", result.ErrorMessage())
		return result, err
	}
	log.Infow("transfer_submitted", "payment_no", result.Get("payment_no"))
	return result, nil
}

// QueryTransfer 查询企业付款
func (s *PaymentService) QueryTransfer(ctx context.Context, partnerTradeNo string) (wxpay.Params, error) {
	result, err := s.gateway.GetTransferInfo(ctx, strings.TrimSpace(partnerTradeNo))
	if err != nil {
		return nil, mapGatewayError(err)
	}
	return result, nil
}

// ListExchanges 网关调用记录列表
func (s *PaymentService) ListExchanges(filter repository.ExchangeListFilter) ([]models.GatewayExchange, int64, error) {
	return s.exchangeRepo.List(filter)
}

// ListNotifications 支付通知流水列表
func (s *PaymentService) ListNotifications(filter repository.NotificationListFilter) ([]models.PaymentNotification, int64, error) {
	return s.notificationRepo.List(filter)
}

// newRequestNo 生成 32 位退款单号或付款单号
func newRequestNo() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
