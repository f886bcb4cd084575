package mq

import "encoding/json"

// 消息主题
const (
	TopicResourceWebhook = "resource-webhook"
	TopicSyncJob         = "sync-job"
	TopicOrderJob        = "order-job"
)

// 订单任务动作
const (
	ActionConfirm = "confirm"
	ActionCancel  = "cancel"
	ActionVerify  = "verify"
)

// 回调事件类型
const (
	EventOrderConfirmed = "order_confirmed"
	EventOrderCancelled = "order_cancelled"
	EventOrderVerified  = "order_verified"
	EventRoomStatus     = "room_status"
)

// WebhookMessage 资源方回调消息
// 控制器识别归属后入队，消费端执行对账动作。
type WebhookMessage struct {
	Provider     string          `json:"provider"`
	ScenicSpotID int64           `json:"scenic_spot_id"`
	ConfigID     int64           `json:"config_id"`
	Event        string          `json:"event"`
	OrderNo      string          `json:"order_no,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ReceivedAt   int64           `json:"received_at"`
}

// SyncJobMessage 价格/库存同步任务消息，每个产品一条
type SyncJobMessage struct {
	ProductID int64 `json:"product_id"`
	Timestamp int64 `json:"timestamp"`
}

// OrderJobMessage 订单操作任务消息
// 渠道回调入口只负责落单与入队，实际对资源方的动作由消费端执行。
type OrderJobMessage struct {
	OrderID   int64  `json:"order_id"`
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}
