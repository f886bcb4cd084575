package models

import "time"

// ApiLog 对外接口调用日志
// 协议适配器每次请求/响应落一行，body 超长截断
type ApiLog struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider       string     `gorm:"type:varchar(32);index;comment:对端系统" json:"provider"`
	Operation      string     `gorm:"type:varchar(64);index;comment:操作名" json:"operation"`
	URL            string     `gorm:"type:varchar(255);comment:请求地址" json:"url,omitempty"`
	RequestBody    string     `gorm:"type:longtext;comment:请求报文" json:"request_body,omitempty"`
	ResponseBody   string     `gorm:"type:longtext;comment:响应报文" json:"response_body,omitempty"`
	Success        bool       `gorm:"comment:是否成功" json:"success"`
	CostMs         int64      `gorm:"comment:耗时毫秒" json:"cost_ms"`
	CreateDatetime *time.Time `gorm:"index;comment:创建时间" json:"create_datetime,omitempty"`
}

// TableName 指定表名
func (ApiLog) TableName() string {
	return "trip_api_log"
}
