package constants

// 交易状态（orderquery trade_state）
const (
	TradeStateSuccess    = "SUCCESS"
	TradeStateRefund     = "REFUND"
	TradeStateNotPay     = "NOTPAY"
	TradeStateClosed     = "CLOSED"
	TradeStateRevoked    = "REVOKED"
	TradeStateUserPaying = "USERPAYING"
	TradeStatePayError   = "PAYERROR"
)

// 支付通知处理状态
const (
	NotifyStatusReceived        = "received"
	NotifyStatusRejected        = "rejected"
	NotifyStatusDuplicate       = "duplicate"
	NotifyStatusConfirmed       = "confirmed"
	NotifyStatusMismatch        = "mismatch"
	NotifyStatusUnverifiedQuery = "unverified_query"
)

// 管理员角色
const (
	AdminRoleViewer   = "viewer"
	AdminRoleOperator = "operator"
)

// 队列常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型
const (
	TaskNotifyConfirm = "payment:notify_confirm"
)

// 缓存键前缀
const (
	CacheKeyNotifyDedupe = "notify:dedupe"
	CacheKeyOrderQuery   = "order:query"
	CacheKeyRateLimit    = "rate"
)
