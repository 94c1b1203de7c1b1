package wxpay

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// Operation 网关接口描述
type Operation struct {
	Name string
	Path string
	// MutualTLS 需要携带商户证书
	MutualTLS bool
	// Verify 响应需要验签（查询类接口）
	Verify bool
	// TransferIdentity 使用 mch_appid/mchid 作为身份字段
	TransferIdentity bool
	fixed            []field
}

type field struct {
	key   string
	value string
}

var (
	OpUnifiedOrder = Operation{
		Name:  "unified_order",
		Path:  PathUnifiedOrder,
		fixed: []field{{FieldTradeType, TradeTypeApp}},
	}
	OpOrderQuery = Operation{
		Name:   "order_query",
		Path:   PathOrderQuery,
		Verify: true,
	}
	OpCloseOrder = Operation{
		Name: "close_order",
		Path: PathCloseOrder,
	}
	OpRefund = Operation{
		Name:      "refund",
		Path:      PathRefund,
		MutualTLS: true,
	}
	OpRefundQuery = Operation{
		Name:   "refund_query",
		Path:   PathRefundQuery,
		Verify: true,
	}
	OpTransfers = Operation{
		Name:             "transfers",
		Path:             PathTransfers,
		MutualTLS:        true,
		TransferIdentity: true,
		fixed:            []field{{FieldCheckName, CheckNameNone}},
	}
	OpGetTransferInfo = Operation{
		Name:      "get_transfer_info",
		Path:      PathGetTransferInfo,
		MutualTLS: true,
	}
)

// Client 商户平台 v2 接口客户端
// 构造后不可变，可并发使用。
type Client struct {
	creds        Credentials
	baseURL      string
	timeout      time.Duration
	rootCAs      *x509.CertPool
	strictVerify bool
	log          *zap.SugaredLogger
	observer     Observer
	now          func() time.Time

	httpClient *http.Client
	tlsClient  *http.Client
	certSerial string
}

// NewClient 创建客户端，证书在此一次性解析
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	c := &Client{
		creds:   creds.clone(),
		baseURL: DefaultBaseURL,
		timeout: defaultTimeout,
		log:     zap.NewNop().Sugar(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if err := c.creds.validate(); err != nil {
		return nil, err
	}

	baseTLS := &tls.Config{MinVersion: tls.VersionTLS12, RootCAs: c.rootCAs}
	c.httpClient = newHTTPClient(c.timeout, baseTLS)

	if c.creds.HasCertificate() {
		cert, serial, err := clientCertificate(c.creds.CertPEM, c.creds.KeyPEM, c.now())
		if err != nil {
			return nil, err
		}
		mutualTLS := baseTLS.Clone()
		mutualTLS.Certificates = []tls.Certificate{cert}
		c.tlsClient = newHTTPClient(c.timeout, mutualTLS)
		c.certSerial = serial
		c.log.Debugw("wxpay_client_certificate_loaded", "mch_id", c.creds.MchID, "serial", serial)
	}
	return c, nil
}

func newHTTPClient(timeout time.Duration, tlsConfig *tls.Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return &http.Client{Timeout: timeout, Transport: transport}
}

// AppID 应用 ID
func (c *Client) AppID() string {
	return c.creds.AppID
}

// MchID 商户号
func (c *Client) MchID() string {
	return c.creds.MchID
}

// CertificateSerial 客户端证书序列号，未配置证书时为空
func (c *Client) CertificateSerial() string {
	return c.certSerial
}

// SupportsMutualTLS 是否可调用需要证书的接口
func (c *Client) SupportsMutualTLS() bool {
	return c.tlsClient != nil
}

// Close 释放连接
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	if c.tlsClient != nil {
		c.tlsClient.CloseIdleConnections()
	}
}

// Envelope 组装并签名请求报文，不修改 business
func (c *Client) Envelope(op Operation, business Params) Params {
	b := NewBuilder(business)
	if op.TransferIdentity {
		b.Set(FieldMchAppID, c.creds.AppID).Set(FieldTransferMchID, c.creds.MchID)
	} else {
		b.Set(FieldAppID, c.creds.AppID).Set(FieldMchID, c.creds.MchID)
	}
	for _, f := range op.fixed {
		b.Set(f.key, f.value)
	}
	b.Set(FieldNonceStr, NonceStr(DefaultNonceLength)).Delete(FieldSign)
	params := b.Build()
	params[FieldSign] = Sign(params, c.creds.PartnerKey)
	return params
}

// Call 执行一次网关调用
// 查询类接口验签失败时返回空结果（严格模式下返回 ErrSignatureMismatch）。
func (c *Client) Call(ctx context.Context, op Operation, business Params) (Params, error) {
	started := time.Now()
	ex := Exchange{
		Operation: op.Name,
		Endpoint:  c.endpoint(op),
		Reference: reference(business),
		MutualTLS: op.MutualTLS,
	}
	result, err := c.do(ctx, op, business, &ex)
	ex.Duration = time.Since(started)
	ex.Err = err
	if c.observer != nil {
		c.observer(ctx, ex)
	}
	if err != nil {
		c.log.Warnw("wxpay_request_failed",
			"operation", op.Name,
			"reference", ex.Reference,
			"duration_ms", ex.Duration.Milliseconds(),
			"error", err,
		)
		return nil, err
	}
	c.log.Infow("wxpay_request_done",
		"operation", op.Name,
		"reference", ex.Reference,
		"return_code", ex.ReturnCode,
		"result_code", ex.ResultCode,
		"duration_ms", ex.Duration.Milliseconds(),
	)
	return result, nil
}

func (c *Client) do(ctx context.Context, op Operation, business Params, ex *Exchange) (Params, error) {
	httpClient := c.httpClient
	if op.MutualTLS {
		if c.tlsClient == nil {
			return nil, fmt.Errorf("%w: %w: %s", ErrTransport, ErrCertificateMissing, op.Name)
		}
		httpClient = c.tlsClient
	}

	envelope := c.Envelope(op, business)
	body, err := EncodeXML(envelope)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ex.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("Accept", "application/xml, text/xml, */*")
	c.log.Debugw("wxpay_request_sent", "operation", op.Name, "endpoint", ex.Endpoint, "nonce_str", envelope[FieldNonceStr])

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	ex.StatusCode = resp.StatusCode
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrTransport, resp.StatusCode)
	}

	result, err := DecodeXML(raw)
	if err != nil {
		return nil, err
	}
	ex.ReturnCode = result.ReturnCode()
	ex.ResultCode = result.ResultCode()
	ex.ErrCode = result.Get(FieldErrCode)

	if op.Verify && !Verify(result, c.creds.PartnerKey) {
		ex.SignatureMismatch = true
		c.log.Warnw("wxpay_signature_mismatch",
			"operation", op.Name,
			"reference", ex.Reference,
			"return_code", ex.ReturnCode,
			"strict", c.strictVerify,
		)
		if c.strictVerify {
			return nil, fmt.Errorf("%w: %s", ErrSignatureMismatch, op.Name)
		}
		return Params{}, nil
	}
	return result, nil
}

func (c *Client) endpoint(op Operation) string {
	return c.baseURL + op.Path
}

func reference(params Params) string {
	for _, key := range []string{FieldOutTradeNo, FieldOutRefundNo, FieldPartnerTradeNo, FieldTransactionID} {
		if value := params.Get(key); value != "" {
			return value
		}
	}
	return ""
}

// IsSignatureMismatch 判断观察到的调用是否因验签失败被置空
func (ex Exchange) IsSignatureMismatch() bool {
	return ex.SignatureMismatch || errors.Is(ex.Err, ErrSignatureMismatch)
}

// 调用结果分类
const (
	OutcomeOK                = "ok"
	OutcomeTransportError    = "transport_error"
	OutcomeParseError        = "parse_error"
	OutcomeSignatureMismatch = "signature_mismatch"
	OutcomeError             = "error"
)

// Outcome 调用结果分类，用于审计与指标
func (ex Exchange) Outcome() string {
	switch {
	case ex.IsSignatureMismatch():
		return OutcomeSignatureMismatch
	case ex.Err == nil:
		return OutcomeOK
	case errors.Is(ex.Err, ErrTransport):
		return OutcomeTransportError
	case errors.Is(ex.Err, ErrParse):
		return OutcomeParseError
	default:
		return OutcomeError
	}
}
