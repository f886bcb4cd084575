package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Order 订单模型
// ResourceOrderNo 是资源方下单成功后回写的单号，只允许写入一次，
// 之后作为对该资源方所有后续操作的幂等键。
type Order struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo          string          `gorm:"uniqueIndex;type:varchar(32);not null;comment:本系统订单号" json:"order_no"`
	OtaPlatform      int             `gorm:"index;not null;comment:销售渠道" json:"ota_platform"`
	OtaOrderNo       string          `gorm:"index;type:varchar(64);comment:渠道订单号" json:"ota_order_no,omitempty"`
	ResourceOrderNo  string          `gorm:"index;type:varchar(64);comment:资源方订单号" json:"resource_order_no,omitempty"`
	Status           int             `gorm:"index;not null;comment:订单状态" json:"status"`
	CheckInDate      string          `gorm:"type:varchar(10);comment:入住日期" json:"check_in_date,omitempty"`
	CheckOutDate     string          `gorm:"type:varchar(10);comment:离店日期" json:"check_out_date,omitempty"`
	RoomCount        int             `gorm:"default:1;comment:房间数" json:"room_count"`
	GuestCount       int             `gorm:"default:1;comment:入住人数" json:"guest_count"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(12,2);comment:销售金额" json:"total_amount"`
	SettlementAmount decimal.Decimal `gorm:"type:decimal(12,2);comment:结算金额" json:"settlement_amount"`
	GuestInfo        string          `gorm:"type:json;comment:入住人信息" json:"guest_info,omitempty"`
	ContactPhone     string          `gorm:"type:varchar(32);comment:联系电话" json:"contact_phone,omitempty"`
	PaidAt           *time.Time      `gorm:"comment:支付时间" json:"paid_at,omitempty"`
	ConfirmedAt      *time.Time      `gorm:"comment:确认时间" json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time      `gorm:"comment:取消时间" json:"cancelled_at,omitempty"`
	CreateDatetime   *time.Time      `gorm:"index;comment:创建时间" json:"create_datetime,omitempty"`
	UpdateDatetime   *time.Time      `gorm:"comment:修改时间" json:"update_datetime,omitempty"`
	HotelID          *int64          `gorm:"index;comment:关联酒店" json:"hotel_id,omitempty"`
	RoomTypeID       *int64          `gorm:"index;comment:关联房型" json:"room_type_id,omitempty"`
	ProductID        *int64          `gorm:"index;comment:关联产品" json:"product_id,omitempty"`

	Hotel   *Hotel   `gorm:"foreignKey:HotelID" json:"hotel,omitempty"`
	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "trip_order"
}

// 订单状态常量（统一状态词表）
const (
	StatusConfirming     = 0 // 待确认
	StatusConfirmed      = 1 // 已确认
	StatusVerified       = 2 // 已核销
	StatusCancelPending  = 3 // 取消申请中
	StatusCancelApproved = 4 // 取消已通过
	StatusCancelRejected = 5 // 取消被拒绝
	StatusClosed         = 6 // 已关闭
)

// StatusText 订单状态中文描述
func StatusText(status int) string {
	switch status {
	case StatusConfirming:
		return "待确认"
	case StatusConfirmed:
		return "已确认"
	case StatusVerified:
		return "已核销"
	case StatusCancelPending:
		return "取消申请中"
	case StatusCancelApproved:
		return "取消已通过"
	case StatusCancelRejected:
		return "取消被拒绝"
	case StatusClosed:
		return "已关闭"
	}
	return "未知"
}

// 销售渠道常量
const (
	OtaCtrip   = 1 // 携程
	OtaFliggy  = 2 // 飞猪
	OtaMeituan = 3 // 美团
)

// Guest 入住人信息（保持下单时的顺序）
type Guest struct {
	Name           string `json:"name"`
	CredentialNo   string `json:"credential_no"`
	CredentialType string `json:"credential_type"`
}

// Guests 解析入住人列表
func (o *Order) Guests() []Guest {
	if o.GuestInfo == "" {
		return nil
	}
	var guests []Guest
	if err := json.Unmarshal([]byte(o.GuestInfo), &guests); err != nil {
		return nil
	}
	return guests
}

// SetGuests 序列化入住人列表
func (o *Order) SetGuests(guests []Guest) error {
	data, err := json.Marshal(guests)
	if err != nil {
		return err
	}
	o.GuestInfo = string(data)
	return nil
}

// HasResourceOrder 资源方订单号是否已写入
func (o *Order) HasResourceOrder() bool {
	return o.ResourceOrderNo != ""
}
