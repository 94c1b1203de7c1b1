package repository

import "time"

// ExchangeListFilter 查询网关调用记录的过滤条件
type ExchangeListFilter struct {
	Page        int
	PageSize    int
	Operation   string
	Reference   string
	Outcome     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// NotificationListFilter 查询支付通知流水的过滤条件
type NotificationListFilter struct {
	Page          int
	PageSize      int
	Status        string
	OutTradeNo    string
	TransactionID string
	OpenID        string
	Verified      *bool
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}
