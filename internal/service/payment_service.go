package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/wxpay-bridge/internal/config"
	"github.com/wxpay-bridge/internal/logger"
	"github.com/wxpay-bridge/internal/metrics"
	"github.com/wxpay-bridge/internal/payment/wxpay"
	"github.com/wxpay-bridge/internal/queue"
	"github.com/wxpay-bridge/internal/repository"

	"go.uber.org/zap"
)

// PaymentGateway 支付网关能力，由 wxpay.Client 实现
type PaymentGateway interface {
	UnifiedOrder(ctx context.Context, req wxpay.UnifiedOrderRequest) (wxpay.Params, error)
	OrderQuery(ctx context.Context, outTradeNo string) (wxpay.Params, error)
	CloseOrder(ctx context.Context, outTradeNo string) (wxpay.Params, error)
	Refund(ctx context.Context, req wxpay.RefundRequest) (wxpay.Params, error)
	RefundQuery(ctx context.Context, outRefundNo string) (wxpay.Params, error)
	Transfers(ctx context.Context, req wxpay.TransferRequest) (wxpay.Params, error)
	GetTransferInfo(ctx context.Context, partnerTradeNo string) (wxpay.Params, error)
	PayParams(prepayID string, timestamp int64) wxpay.Params
	VerifyNotify(body []byte) (wxpay.Params, error)
}

// PaymentServiceOptions 支付服务依赖
type PaymentServiceOptions struct {
	Gateway          PaymentGateway
	ExchangeRepo     repository.ExchangeRepository
	NotificationRepo repository.NotificationRepository
	QueueClient      *queue.Client
	Metrics          *metrics.Metrics
	Order            config.OrderConfig
	Notify           config.NotifyConfig
	LocalIP          string
}

// PaymentService 支付业务服务
type PaymentService struct {
	gateway          PaymentGateway
	exchangeRepo     repository.ExchangeRepository
	notificationRepo repository.NotificationRepository
	queueClient      *queue.Client
	metrics          *metrics.Metrics
	orderCfg         config.OrderConfig
	notifyCfg        config.NotifyConfig
	localIP          string
	now              func() time.Time
}

// NewPaymentService 创建支付服务
func NewPaymentService(opts PaymentServiceOptions) *PaymentService {
	return &PaymentService{
		gateway:          opts.Gateway,
		exchangeRepo:     opts.ExchangeRepo,
		notificationRepo: opts.NotificationRepo,
		queueClient:      opts.QueueClient,
		metrics:          opts.Metrics,
		orderCfg:         opts.Order,
		notifyCfg:        opts.Notify,
		localIP:          strings.TrimSpace(opts.LocalIP),
		now:              time.Now,
	}
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// CreateAppPayment 按配置金额统一下单并返回 APP 调起参数
func (s *PaymentService) CreateAppPayment(ctx context.Context) (wxpay.Params, error) {
	if s.gateway == nil {
		return nil, ErrPaymentConfigInvalid
	}
	totalFee, err := wxpay.YuanToFen(s.orderCfg.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentConfigInvalid, err)
	}
	now := s.now()
	outTradeNo := newOutTradeNo(now)
	log := paymentLogger("out_trade_no", outTradeNo, "total_fee", totalFee)

	result, err := s.gateway.UnifiedOrder(ctx, wxpay.UnifiedOrderRequest{
		Body:           s.orderCfg.Body,
		OutTradeNo:     outTradeNo,
		TotalFee:       totalFee,
		NotifyURL:      s.orderCfg.NotifyURL,
		SpbillCreateIP: s.localIP,
	})
	if err != nil {
		log.Warnw("unified_order_failed", "error", err)
		return nil, mapGatewayError(err)
	}
	prepayID := result.Get(wxpay.FieldPrepayID)
	if prepayID == "" {
		log.Warnw("unified_order_rejected",
			"return_code", result.ReturnCode(),
			"result_code", result.ResultCode(),
			"message", result.ErrorMessage(),
		)
		return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, result.ErrorMessage())
	}
	log.Infow("unified_order_created", "prepay_id", prepayID)
	return s.gateway.PayParams(prepayID, now.Unix()), nil
}

// newOutTradeNo 商户订单号：时间戳加四位随机数
func newOutTradeNo(now time.Time) string {
	return fmt.Sprintf("%s%04d", now.Format("20060102150405"), rand.IntN(10000))
}

// ensureAccepted 网关返回失败时转换为业务错误
func ensureAccepted(result wxpay.Params) error {
	if result.IsSuccess() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrGatewayRejected, result.ErrorMessage())
}

// mapGatewayError 网关错误转换为服务层错误
func mapGatewayError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, wxpay.ErrCertificateMissing):
		return ErrCertificateUnavailable
	case errors.Is(err, wxpay.ErrParamsInvalid):
		return fmt.Errorf("%w: %v", ErrPaymentParamsInvalid, err)
	case errors.Is(err, wxpay.ErrConfigInvalid):
		return ErrPaymentConfigInvalid
	case errors.Is(err, wxpay.ErrSignatureMismatch):
		return ErrGatewaySignatureMismatch
	case errors.Is(err, wxpay.ErrParse):
		return ErrGatewayResponseInvalid
	case errors.Is(err, wxpay.ErrTransport):
		return ErrGatewayRequestFailed
	default:
		return ErrGatewayRequestFailed
	}
}
