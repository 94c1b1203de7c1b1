package models

import "time"

// GatewayExchange 网关调用审计记录
type GatewayExchange struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	Operation         string    `gorm:"index;not null" json:"operation"`          // 接口名（unified_order/refund/...）
	Endpoint          string    `gorm:"not null" json:"endpoint"`                 // 请求地址
	Reference         string    `gorm:"index" json:"reference"`                   // 业务单号
	MutualTLS         bool      `gorm:"not null;default:false" json:"mutual_tls"` // 是否携带商户证书
	StatusCode        int       `json:"status_code"`                              // HTTP 状态码
	ReturnCode        string    `json:"return_code"`
	ResultCode        string    `json:"result_code"`
	ErrCode           string    `json:"err_code"`
	Outcome           string    `gorm:"index;not null" json:"outcome"` // ok/transport_error/parse_error/signature_mismatch/error
	SignatureMismatch bool      `gorm:"not null;default:false" json:"signature_mismatch"`
	DurationMs        int64     `json:"duration_ms"`
	ErrorMessage      string    `gorm:"type:text" json:"error_message"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (GatewayExchange) TableName() string {
	return "gateway_exchanges"
}
