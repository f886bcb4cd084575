package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyRate 产品价格/库存日历，价格库存推送的数据源
type DailyRate struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID      int64           `gorm:"uniqueIndex:idx_rate_date;not null;comment:关联产品" json:"product_id"`
	Date           string          `gorm:"uniqueIndex:idx_rate_date;type:varchar(10);not null;comment:日期" json:"date"`
	Price          decimal.Decimal `gorm:"type:decimal(12,2);comment:售价" json:"price"`
	SettlePrice    decimal.Decimal `gorm:"type:decimal(12,2);comment:结算价" json:"settle_price"`
	Stock          int             `gorm:"default:0;comment:可售库存" json:"stock"`
	CreateDatetime *time.Time      `gorm:"comment:创建时间" json:"create_datetime,omitempty"`
	UpdateDatetime *time.Time      `gorm:"comment:修改时间" json:"update_datetime,omitempty"`
}

// TableName 指定表名
func (DailyRate) TableName() string {
	return "trip_daily_rate"
}

// PriceFen 售价转分
func (r *DailyRate) PriceFen() int64 {
	return r.Price.Mul(decimal.NewFromInt(100)).IntPart()
}
