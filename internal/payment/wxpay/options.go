package wxpay

import (
	"context"
	"crypto/x509"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Exchange 一次网关调用的摘要
type Exchange struct {
	Operation         string
	Endpoint          string
	Reference         string
	MutualTLS         bool
	StatusCode        int
	ReturnCode        string
	ResultCode        string
	ErrCode           string
	SignatureMismatch bool
	Duration          time.Duration
	Err               error
}

// Observer 网关调用观察者，每次调用结束后同步回调
type Observer func(ctx context.Context, ex Exchange)

// Option 客户端选项
type Option func(*Client)

// WithBaseURL 覆盖网关地址（沙箱或测试）
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout 设置单次请求超时
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRootCAs 指定信任的服务端根证书
func WithRootCAs(pool *x509.CertPool) Option {
	return func(c *Client) {
		c.rootCAs = pool
	}
}

// WithLogger 设置日志
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithObserver 设置调用观察者
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// WithStrictVerify 查询类接口验签失败时返回 ErrSignatureMismatch 而不是空结果
func WithStrictVerify(strict bool) Option {
	return func(c *Client) {
		c.strictVerify = strict
	}
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Observers 组合多个观察者，按顺序回调
func Observers(observers ...Observer) Observer {
	active := make([]Observer, 0, len(observers))
	for _, observer := range observers {
		if observer != nil {
			active = append(active, observer)
		}
	}
	return func(ctx context.Context, ex Exchange) {
		for _, observer := range active {
			observer(ctx, ex)
		}
	}
}
