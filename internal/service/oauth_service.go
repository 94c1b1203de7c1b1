package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wxpay-bridge/internal/logger"
	"github.com/wxpay-bridge/internal/payment/wxauth"
)

// AccessTokenExchanger 网页授权 code 换取凭证
type AccessTokenExchanger interface {
	AccessToken(ctx context.Context, code string) (*wxauth.AccessToken, error)
}

// OAuthService 微信网页授权服务
type OAuthService struct {
	client AccessTokenExchanger
}

// NewOAuthService 创建授权服务，client 为空表示未配置
func NewOAuthService(client AccessTokenExchanger) *OAuthService {
	return &OAuthService{client: client}
}

// Enabled 是否可用
func (s *OAuthService) Enabled() bool {
	return s != nil && s.client != nil
}

// ExchangeCode 用授权 code 换取 access_token 与 openid
func (s *OAuthService) ExchangeCode(ctx context.Context, code string) (*wxauth.AccessToken, error) {
	if !s.Enabled() {
		return nil, ErrOAuthDisabled
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrPaymentParamsInvalid)
	}
	token, err := s.client.AccessToken(ctx, code)
	if err != nil {
		logger.Warnw("wechat_oauth_exchange_failed", "error", err)
		if errors.Is(err, wxauth.ErrConfigInvalid) {
			return nil, ErrOAuthDisabled
		}
		return nil, fmt.Errorf("%w: %v", ErrOAuthRequestFailed, err)
	}
	logger.Infow("wechat_oauth_exchanged", "openid", token.OpenID)
	return token, nil
}
