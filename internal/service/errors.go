package service

import "errors"

var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminExists        = errors.New("admin already exists")
	ErrRoleInvalid        = errors.New("admin role invalid")

	ErrPaymentParamsInvalid     = errors.New("payment params invalid")
	ErrPaymentConfigInvalid     = errors.New("payment config invalid")
	ErrGatewayRequestFailed     = errors.New("payment gateway request failed")
	ErrGatewayResponseInvalid   = errors.New("payment gateway response invalid")
	ErrGatewaySignatureMismatch = errors.New("payment gateway signature mismatch")
	ErrGatewayRejected          = errors.New("payment gateway rejected request")
	ErrCertificateUnavailable   = errors.New("merchant certificate unavailable")

	ErrNotifyInvalid          = errors.New("payment notify invalid")
	ErrNotifySignatureInvalid = errors.New("payment notify signature invalid")

	ErrOAuthDisabled      = errors.New("wechat oauth disabled")
	ErrOAuthRequestFailed = errors.New("wechat oauth request failed")
)
