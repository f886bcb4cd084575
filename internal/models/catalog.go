package models

import "time"

// ScenicSpot 景区模型
// ApiType 决定该景区走哪一家资源方软件商
type ScenicSpot struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string     `gorm:"type:varchar(128);not null;comment:景区名称" json:"name"`
	Code           string     `gorm:"uniqueIndex;type:varchar(32);comment:景区编码" json:"code"`
	ApiType        string     `gorm:"type:varchar(32);index;comment:资源方软件商类型" json:"api_type"`
	CreateDatetime *time.Time `gorm:"comment:创建时间" json:"create_datetime,omitempty"`
	UpdateDatetime *time.Time `gorm:"comment:修改时间" json:"update_datetime,omitempty"`
}

// TableName 指定表名
func (ScenicSpot) TableName() string {
	return "trip_scenic_spot"
}

// 资源方软件商类型常量
const (
	ApiTypeHengdian   = "hengdian"    // 横店酒店系统
	ApiTypeFliggyDist = "fliggy_dist" // 飞猪分销
	ApiTypeZiwoyou    = "ziwoyou"     // 自我游票务
)

// Hotel 酒店模型
type Hotel struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ScenicSpotID   int64      `gorm:"index;not null;comment:关联景区" json:"scenic_spot_id"`
	Name           string     `gorm:"type:varchar(128);not null;comment:酒店名称" json:"name"`
	ExternalCode   string     `gorm:"index;type:varchar(64);comment:资源方酒店编码" json:"external_code,omitempty"`
	CreateDatetime *time.Time `gorm:"comment:创建时间" json:"create_datetime,omitempty"`

	ScenicSpot *ScenicSpot `gorm:"foreignKey:ScenicSpotID" json:"scenic_spot,omitempty"`
}

// TableName 指定表名
func (Hotel) TableName() string {
	return "trip_hotel"
}

// RoomType 房型模型
type RoomType struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	HotelID        int64      `gorm:"index;not null;comment:关联酒店" json:"hotel_id"`
	Name           string     `gorm:"type:varchar(128);not null;comment:房型名称" json:"name"`
	ExternalCode   string     `gorm:"index;type:varchar(64);comment:资源方房型编码" json:"external_code,omitempty"`
	CreateDatetime *time.Time `gorm:"comment:创建时间" json:"create_datetime,omitempty"`
}

// TableName 指定表名
func (RoomType) TableName() string {
	return "trip_room_type"
}

// Product 产品模型（对外售卖单元）
type Product struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ScenicSpotID   int64      `gorm:"index;not null;comment:关联景区" json:"scenic_spot_id"`
	HotelID        *int64     `gorm:"index;comment:关联酒店" json:"hotel_id,omitempty"`
	RoomTypeID     *int64     `gorm:"index;comment:关联房型" json:"room_type_id,omitempty"`
	Name           string     `gorm:"type:varchar(128);not null;comment:产品名称" json:"name"`
	ExternalCode   string     `gorm:"index;type:varchar(64);comment:资源方产品编码" json:"external_code,omitempty"`
	Enabled        bool       `gorm:"default:true;comment:是否上架" json:"enabled"`
	CreateDatetime *time.Time `gorm:"comment:创建时间" json:"create_datetime,omitempty"`
}

// TableName 指定表名
func (Product) TableName() string {
	return "trip_product"
}

// 映射目标为销售渠道时的编码
const (
	TargetCtrip   = "ctrip"
	TargetFliggy  = "fliggy"
	TargetMeituan = "meituan"
)

// ProductMapping 产品与外部系统标识映射
// Target 既可以是资源方软件商类型，也可以是销售渠道编码（ctrip/fliggy/meituan）
type ProductMapping struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID  int64  `gorm:"index:idx_product_target,unique;not null;comment:关联产品" json:"product_id"`
	Target     string `gorm:"index:idx_product_target,unique;type:varchar(32);not null;comment:目标系统" json:"target"`
	ExternalID string `gorm:"index;type:varchar(64);not null;comment:目标系统产品标识" json:"external_id"`
}

// TableName 指定表名
func (ProductMapping) TableName() string {
	return "trip_product_mapping"
}
