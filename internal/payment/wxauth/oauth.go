package wxauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAccessTokenURL 网页授权换取 access_token 地址
const DefaultAccessTokenURL = "https://api.weixin.qq.com/sns/oauth2/access_token"

const grantTypeAuthorizationCode = "authorization_code"

var (
	ErrConfigInvalid   = errors.New("wxauth config invalid")
	ErrRequestFailed   = errors.New("wxauth request failed")
	ErrResponseInvalid = errors.New("wxauth response invalid")
)

// Config 授权配置
type Config struct {
	AppID     string
	AppSecret string
	BaseURL   string
	Timeout   time.Duration
}

// AccessToken 授权凭证
type AccessToken struct {
	AccessToken  string                 `json:"access_token"`
	ExpiresIn    int64                  `json:"expires_in"`
	RefreshToken string                 `json:"refresh_token"`
	OpenID       string                 `json:"openid"`
	Scope        string                 `json:"scope"`
	UnionID      string                 `json:"unionid,omitempty"`
	ErrCode      int                    `json:"errcode,omitempty"`
	ErrMsg       string                 `json:"errmsg,omitempty"`
	Raw          map[string]interface{} `json:"-"`
}

// Client 网页授权客户端，不涉及签名
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建授权客户端
func NewClient(cfg Config) (*Client, error) {
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	cfg.AppSecret = strings.TrimSpace(cfg.AppSecret)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("%w: app_id and app_secret are required", ErrConfigInvalid)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAccessTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}, nil
}

// AccessToken 用授权 code 换取 access_token
func (c *Client) AccessToken(ctx context.Context, code string) (*AccessToken, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrConfigInvalid)
	}
	query := url.Values{}
	query.Set("appid", c.cfg.AppID)
	query.Set("secret", c.cfg.AppSecret)
	query.Set("code", code)
	query.Set("grant_type", grantTypeAuthorizationCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRequestFailed, resp.StatusCode)
	}

	var token AccessToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	_ = json.Unmarshal(body, &token.Raw)
	if token.ErrCode != 0 {
		return &token, fmt.Errorf("%w: errcode=%d errmsg=%s", ErrResponseInvalid, token.ErrCode, token.ErrMsg)
	}
	return &token, nil
}
