package wxpay

import "errors"

var (
	ErrConfigInvalid      = errors.New("wxpay config invalid")
	ErrParamsInvalid      = errors.New("wxpay params invalid")
	ErrCertificateMissing = errors.New("wxpay client certificate missing")
	ErrTransport          = errors.New("wxpay transport failed")
	ErrParse              = errors.New("wxpay response parse failed")
	ErrSignatureMismatch  = errors.New("wxpay signature mismatch")
)
