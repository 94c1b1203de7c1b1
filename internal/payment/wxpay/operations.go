package wxpay

import (
	"context"
	"fmt"
	"strings"
)

// UnifiedOrderRequest APP 统一下单参数
type UnifiedOrderRequest struct {
	Body           string
	OutTradeNo     string
	TotalFee       int64 // 单位：分
	NotifyURL      string
	SpbillCreateIP string
	Attach         string
	Extra          Params
}

// RefundRequest 申请退款参数
type RefundRequest struct {
	OutTradeNo    string
	TransactionID string
	OutRefundNo   string
	TotalFee      int64
	RefundFee     int64
	RefundDesc    string
	NotifyURL     string
	Extra         Params
}

// TransferRequest 企业付款到零钱参数
type TransferRequest struct {
	PartnerTradeNo string
	OpenID         string
	Amount         int64
	Desc           string
	SpbillCreateIP string
	Extra          Params
}

func (r UnifiedOrderRequest) params() (Params, error) {
	if strings.TrimSpace(r.Body) == "" || strings.TrimSpace(r.OutTradeNo) == "" {
		return nil, fmt.Errorf("%w: body and out_trade_no are required", ErrParamsInvalid)
	}
	if r.TotalFee <= 0 {
		return nil, fmt.Errorf("%w: total_fee must be positive", ErrParamsInvalid)
	}
	if strings.TrimSpace(r.NotifyURL) == "" || strings.TrimSpace(r.SpbillCreateIP) == "" {
		return nil, fmt.Errorf("%w: notify_url and spbill_create_ip are required", ErrParamsInvalid)
	}
	return NewBuilder(r.Extra).
		Set(FieldBody, r.Body).
		Set(FieldOutTradeNo, r.OutTradeNo).
		Set(FieldTotalFee, r.TotalFee).
		Set(FieldNotifyURL, r.NotifyURL).
		Set(FieldSpbillCreateIP, r.SpbillCreateIP).
		SetIfNotEmpty(FieldAttach, r.Attach).
		Build(), nil
}

func (r RefundRequest) params() (Params, error) {
	if strings.TrimSpace(r.OutRefundNo) == "" {
		return nil, fmt.Errorf("%w: out_refund_no is required", ErrParamsInvalid)
	}
	if strings.TrimSpace(r.OutTradeNo) == "" && strings.TrimSpace(r.TransactionID) == "" {
		return nil, fmt.Errorf("%w: out_trade_no or transaction_id is required", ErrParamsInvalid)
	}
	if r.TotalFee <= 0 || r.RefundFee <= 0 {
		return nil, fmt.Errorf("%w: total_fee and refund_fee must be positive", ErrParamsInvalid)
	}
	if r.RefundFee > r.TotalFee {
		return nil, fmt.Errorf("%w: refund_fee exceeds total_fee", ErrParamsInvalid)
	}
	return NewBuilder(r.Extra).
		SetIfNotEmpty(FieldOutTradeNo, r.OutTradeNo).
		SetIfNotEmpty(FieldTransactionID, r.TransactionID).
		Set(FieldOutRefundNo, r.OutRefundNo).
		Set(FieldTotalFee, r.TotalFee).
		Set(FieldRefundFee, r.RefundFee).
		SetIfNotEmpty(FieldRefundDesc, r.RefundDesc).
		SetIfNotEmpty(FieldNotifyURL, r.NotifyURL).
		Build(), nil
}

func (r TransferRequest) params() (Params, error) {
	if strings.TrimSpace(r.PartnerTradeNo) == "" || strings.TrimSpace(r.OpenID) == "" {
		return nil, fmt.Errorf("%w: partner_trade_no and openid are required", ErrParamsInvalid)
	}
	if r.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrParamsInvalid)
	}
	if strings.TrimSpace(r.Desc) == "" {
		return nil, fmt.Errorf("%w: desc is required", ErrParamsInvalid)
	}
	return NewBuilder(r.Extra).
		Set(FieldPartnerTradeNo, r.PartnerTradeNo).
		Set(FieldOpenID, r.OpenID).
		Set(FieldAmount, r.Amount).
		Set(FieldDesc, r.Desc).
		SetIfNotEmpty(FieldSpbillCreateIP, r.SpbillCreateIP).
		Build(), nil
}

// UnifiedOrder 统一下单（trade_type=APP）
func (c *Client) UnifiedOrder(ctx context.Context, req UnifiedOrderRequest) (Params, error) {
	params, err := req.params()
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, OpUnifiedOrder, params)
}

// OrderQuery 查询订单，响应验签
func (c *Client) OrderQuery(ctx context.Context, outTradeNo string) (Params, error) {
	if strings.TrimSpace(outTradeNo) == "" {
		return nil, fmt.Errorf("%w: out_trade_no is required", ErrParamsInvalid)
	}
	return c.Call(ctx, OpOrderQuery, Params{FieldOutTradeNo: outTradeNo})
}

// CloseOrder 关闭订单
func (c *Client) CloseOrder(ctx context.Context, outTradeNo string) (Params, error) {
	if strings.TrimSpace(outTradeNo) == "" {
		return nil, fmt.Errorf("%w: out_trade_no is required", ErrParamsInvalid)
	}
	return c.Call(ctx, OpCloseOrder, Params{FieldOutTradeNo: outTradeNo})
}

// Refund 申请退款（需要证书）
func (c *Client) Refund(ctx context.Context, req RefundRequest) (Params, error) {
	params, err := req.params()
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, OpRefund, params)
}

// RefundQuery 查询退款，响应验签
func (c *Client) RefundQuery(ctx context.Context, outRefundNo string) (Params, error) {
	if strings.TrimSpace(outRefundNo) == "" {
		return nil, fmt.Errorf("%w: out_refund_no is required", ErrParamsInvalid)
	}
	return c.Call(ctx, OpRefundQuery, Params{FieldOutRefundNo: outRefundNo})
}

// Transfers 企业付款（需要证书，check_name 固定 NO_CHECK）
func (c *Client) Transfers(ctx context.Context, req TransferRequest) (Params, error) {
	params, err := req.params()
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, OpTransfers, params)
}

// GetTransferInfo 查询企业付款（需要证书）
func (c *Client) GetTransferInfo(ctx context.Context, partnerTradeNo string) (Params, error) {
	if strings.TrimSpace(partnerTradeNo) == "" {
		return nil, fmt.Errorf("%w: partner_trade_no is required", ErrParamsInvalid)
	}
	return c.Call(ctx, OpGetTransferInfo, Params{FieldPartnerTradeNo: partnerTradeNo})
}

// PayParams APP 端调起支付所需参数，本地签名，不访问网关
func (c *Client) PayParams(prepayID string, timestamp int64) Params {
	params := NewBuilder(nil).
		Set(FieldAppID, c.creds.AppID).
		Set(FieldPayPartnerID, c.creds.MchID).
		Set(FieldPayPackage, PackageSignWXPay).
		Set(FieldPayNonceStr, NonceStr(DefaultNonceLength)).
		Set(FieldPayTimestamp, timestamp).
		Set(FieldPayPrepayID, prepayID).
		Build()
	params[FieldSign] = Sign(params, c.creds.PartnerKey)
	return params
}

// VerifyNotify 解析并验签支付结果通知
func (c *Client) VerifyNotify(body []byte) (Params, error) {
	params, err := DecodeXML(body)
	if err != nil {
		return nil, err
	}
	if !Verify(params, c.creds.PartnerKey) {
		return params, fmt.Errorf("%w: notify", ErrSignatureMismatch)
	}
	return params, nil
}

// NotifyAck 支付通知应答报文
func NotifyAck(ok bool, msg string) []byte {
	code := codeSuccess
	if !ok {
		code = codeFail
	}
	if ok && msg == "" {
		msg = "OK"
	}
	body, err := EncodeXML(Params{FieldReturnCode: code, FieldReturnMsg: msg})
	if err != nil {
		return nil
	}
	return body
}
