package wxpay

// DefaultBaseURL 商户平台网关地址
const DefaultBaseURL = "https://api.mch.weixin.qq.com"

// 接口路径
const (
	PathUnifiedOrder    = "/pay/unifiedorder"
	PathOrderQuery      = "/pay/orderquery"
	PathCloseOrder      = "/pay/closeorder"
	PathRefund          = "/secapi/pay/refund"
	PathRefundQuery     = "/pay/refundquery"
	PathTransfers       = "/mmpaymkttransfers/promotion/transfers"
	PathGetTransferInfo = "/mmpaymkttransfers/gettransferinfo"
)

// 报文字段名
const (
	FieldAppID          = "appid"
	FieldMchID          = "mch_id"
	FieldMchAppID       = "mch_appid"
	FieldTransferMchID  = "mchid"
	FieldNonceStr       = "nonce_str"
	FieldSign           = "sign"
	FieldTradeType      = "trade_type"
	FieldBody           = "body"
	FieldAttach         = "attach"
	FieldOutTradeNo     = "out_trade_no"
	FieldTransactionID  = "transaction_id"
	FieldTotalFee       = "total_fee"
	FieldNotifyURL      = "notify_url"
	FieldSpbillCreateIP = "spbill_create_ip"
	FieldOutRefundNo    = "out_refund_no"
	FieldRefundFee      = "refund_fee"
	FieldRefundDesc     = "refund_desc"
	FieldPartnerTradeNo = "partner_trade_no"
	FieldOpenID         = "openid"
	FieldAmount         = "amount"
	FieldDesc           = "desc"
	FieldCheckName      = "check_name"
	FieldReUserName     = "re_user_name"
	FieldReturnCode     = "return_code"
	FieldReturnMsg      = "return_msg"
	FieldResultCode     = "result_code"
	FieldErrCode        = "err_code"
	FieldErrCodeDes     = "err_code_des"
	FieldPrepayID       = "prepay_id"
	FieldTradeState     = "trade_state"
)

// APP 调起支付字段
const (
	FieldPayPartnerID = "partnerid"
	FieldPayPrepayID  = "prepayid"
	FieldPayPackage   = "package"
	FieldPayNonceStr  = "noncestr"
	FieldPayTimestamp = "timestamp"
)

const (
	TradeTypeApp     = "APP"
	CheckNameNone    = "NO_CHECK"
	CheckNameForce   = "FORCE_CHECK"
	PackageSignWXPay = "Sign=WXPay"
	codeSuccess      = "SUCCESS"
	codeFail         = "FAIL"
)
