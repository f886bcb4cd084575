package models

import "time"

// ExceptionRecord 异常工单
// 资源方调用出现不可静默重试的失败时创建，供人工处理队列消费；
// Detail 保留资源方原始返回原文，便于排障。
type ExceptionRecord struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID        *int64     `gorm:"index;comment:关联订单" json:"order_id,omitempty"`
	ExceptionType  string     `gorm:"type:varchar(32);index;not null;comment:异常类型" json:"exception_type"`
	Title          string     `gorm:"type:varchar(255);comment:摘要" json:"title,omitempty"`
	Detail         string     `gorm:"type:longtext;comment:诊断数据" json:"detail,omitempty"`
	Status         int        `gorm:"index;default:0;comment:处理状态" json:"status"`
	Remark         string     `gorm:"type:varchar(255);comment:处理备注" json:"remark,omitempty"`
	CreateDatetime *time.Time `gorm:"index;comment:创建时间" json:"create_datetime,omitempty"`
	UpdateDatetime *time.Time `gorm:"comment:修改时间" json:"update_datetime,omitempty"`
}

// TableName 指定表名
func (ExceptionRecord) TableName() string {
	return "trip_exception_record"
}

// 异常类型常量
const (
	ExceptionTypeAPIError          = "api_error"
	ExceptionTypeTimeout           = "timeout"
	ExceptionTypeInventoryMismatch = "inventory_mismatch"
	ExceptionTypePriceMismatch     = "price_mismatch"
)

// 异常处理状态常量
const (
	ExceptionStatusPending    = 0 // 待处理
	ExceptionStatusProcessing = 1 // 处理中
	ExceptionStatusResolved   = 2 // 已解决
)
