package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ResourceConfig 资源方接入配置
// 每个（软件商, 景区）组合至多一条启用中的配置（唯一索引保证）。
type ResourceConfig struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ScenicSpotID   int64      `gorm:"uniqueIndex:idx_provider_spot;not null;comment:关联景区" json:"scenic_spot_id"`
	Provider       string     `gorm:"uniqueIndex:idx_provider_spot;type:varchar(32);not null;comment:软件商类型" json:"provider"`
	ApiURL         string     `gorm:"type:varchar(255);not null;comment:接口地址" json:"api_url"`
	AuthKind       string     `gorm:"type:varchar(32);not null;comment:鉴权类型" json:"auth_kind"`
	AuthParams     string     `gorm:"type:json;comment:鉴权参数" json:"auth_params,omitempty"`
	InventoryMode  string     `gorm:"type:varchar(16);default:manual;comment:库存同步方式" json:"inventory_mode"`
	PriceMode      string     `gorm:"type:varchar(16);default:manual;comment:价格同步方式" json:"price_mode"`
	OrderMode      string     `gorm:"type:varchar(16);default:manual;comment:订单处理方式" json:"order_mode"`
	Enabled        bool       `gorm:"default:true;comment:是否启用" json:"enabled"`
	CreateDatetime *time.Time `gorm:"comment:创建时间" json:"create_datetime,omitempty"`
	UpdateDatetime *time.Time `gorm:"comment:修改时间" json:"update_datetime,omitempty"`
}

// TableName 指定表名
func (ResourceConfig) TableName() string {
	return "trip_resource_config"
}

// 同步方式常量
const (
	SyncModePush   = "push"
	SyncModePull   = "pull"
	SyncModeManual = "manual"

	OrderModeAuto   = "auto"
	OrderModeManual = "manual"
)

// 鉴权类型常量（封闭集合）
const (
	AuthKindUsernamePassword = "username_password"
	AuthKindAppKeySecret     = "appkey_secret"
	AuthKindToken            = "token"
	AuthKindCustom           = "custom"
)

// AuthConfig 鉴权配置（带标签的和类型，取代字符串前缀嗅探的 JSON 黑盒）
type AuthConfig struct {
	Kind     string            `json:"kind"`
	Username string            `json:"username,omitempty"`
	Password string            `json:"password,omitempty"`
	AppKey   string            `json:"app_key,omitempty"`
	Secret   string            `json:"secret,omitempty"`
	Token    string            `json:"token,omitempty"`
	Custom   map[string]string `json:"custom,omitempty"`
}

// Auth 解析鉴权配置
func (c *ResourceConfig) Auth() (*AuthConfig, error) {
	auth := &AuthConfig{Kind: c.AuthKind}
	if c.AuthParams != "" {
		if err := json.Unmarshal([]byte(c.AuthParams), auth); err != nil {
			return nil, fmt.Errorf("解析鉴权参数失败: %w", err)
		}
	}
	auth.Kind = c.AuthKind

	switch auth.Kind {
	case AuthKindUsernamePassword:
		if auth.Username == "" || auth.Password == "" {
			return nil, fmt.Errorf("鉴权配置缺少用户名或密码")
		}
	case AuthKindAppKeySecret:
		if auth.AppKey == "" || auth.Secret == "" {
			return nil, fmt.Errorf("鉴权配置缺少 app_key 或 secret")
		}
	case AuthKindToken:
		if auth.Token == "" {
			return nil, fmt.Errorf("鉴权配置缺少 token")
		}
	case AuthKindCustom:
		// 自定义参数不做结构校验，由各协议适配器自行取值
	default:
		return nil, fmt.Errorf("未知的鉴权类型: %s", auth.Kind)
	}
	return auth, nil
}

// SetAuth 序列化鉴权配置
func (c *ResourceConfig) SetAuth(auth *AuthConfig) error {
	data, err := json.Marshal(auth)
	if err != nil {
		return err
	}
	c.AuthKind = auth.Kind
	c.AuthParams = string(data)
	return nil
}

// CustomValue 读取自定义鉴权参数，带平台后缀的键优先
// 例如横店按渠道区分账号时，key 为 "username_ctrip"，缺省回落到 "username"。
func (a *AuthConfig) CustomValue(key, platformSuffix string) string {
	if a.Custom == nil {
		return ""
	}
	if platformSuffix != "" {
		if v, ok := a.Custom[key+"_"+platformSuffix]; ok && v != "" {
			return v
		}
	}
	return a.Custom[key]
}
