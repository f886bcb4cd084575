package models

import "time"

// SyncFingerprint 同步指纹记录
// 每个 产品×酒店×房型×渠道 组合一行；首次推送成功时创建，
// 之后每次推送成功覆盖，组合存续期间不删除。
type SyncFingerprint struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID     int64      `gorm:"uniqueIndex:idx_sync_combo;not null;comment:关联产品" json:"product_id"`
	HotelID       int64      `gorm:"uniqueIndex:idx_sync_combo;not null;comment:关联酒店" json:"hotel_id"`
	RoomTypeID    int64      `gorm:"uniqueIndex:idx_sync_combo;not null;comment:关联房型" json:"room_type_id"`
	OtaPlatform   int        `gorm:"uniqueIndex:idx_sync_combo;not null;comment:销售渠道" json:"ota_platform"`
	LastPriceHash string     `gorm:"type:varchar(64);comment:最近价格推送指纹" json:"last_price_hash,omitempty"`
	LastStockHash string     `gorm:"type:varchar(64);comment:最近库存推送指纹" json:"last_stock_hash,omitempty"`
	PricePushedAt *time.Time `gorm:"comment:价格推送时间" json:"price_pushed_at,omitempty"`
	StockPushedAt *time.Time `gorm:"comment:库存推送时间" json:"stock_pushed_at,omitempty"`
}

// TableName 指定表名
func (SyncFingerprint) TableName() string {
	return "trip_sync_fingerprint"
}
