package models

import "time"

// PaymentNotification 支付结果通知流水
type PaymentNotification struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	OutTradeNo    string     `gorm:"index" json:"out_trade_no"`
	TransactionID string     `gorm:"index" json:"transaction_id"`
	TotalFee      int64      `json:"total_fee"` // 单位：分
	ResultCode    string     `json:"result_code"`
	Verified      bool       `gorm:"not null;default:false" json:"verified"` // 通知签名是否通过
	Status        string     `gorm:"index;not null" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"` // 确认查询次数
	TradeState    string     `json:"trade_state"`                        // 确认查询得到的交易状态
	Payload       StringMap  `gorm:"type:json" json:"payload"`
	LastError     string     `gorm:"type:text" json:"last_error"`
	ConfirmedAt   *time.Time `json:"confirmed_at"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (PaymentNotification) TableName() string {
	return "payment_notifications"
}
