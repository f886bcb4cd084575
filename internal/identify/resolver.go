package identify

import (
	"context"

	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"github.com/golang-trip-core/internal/service"
	"go.uber.org/zap"
)

// Method 回调归属的识别途径
type Method string

const (
	MethodBusinessData Method = "business_data" // 业务字段反查
	MethodAuthParams   Method = "auth_params"   // 鉴权参数比对
	MethodURLPath      Method = "url_path"      // URL 显式景区编码
)

// Identity 识别结果
type Identity struct {
	Spot   *models.ScenicSpot
	Config *models.ResourceConfig
	Method Method
}

// Request 回调识别输入
// Provider 必填；其余字段按回调报文尽量填充，级联逐项尝试。
type Request struct {
	Provider    string            // 软件商类型
	SpotCode    string            // URL 路径里的景区编码段
	Params      map[string]string // 报文携带的鉴权参数
	HotelCode   string            // 酒店外部编码
	OrderNo     string            // 资源方或本系统订单号
	ProductCode string            // 产品外部编码
}

// 回调报文里可能承载身份的鉴权参数名
var authParamKeys = []string{"username", "appkey", "app_id", "token", "access_token"}

// Resolve 识别回调归属的景区与配置
// 级联顺序：业务字段 → 鉴权参数 → URL 景区编码；全部落空返回 nil，
// 调用方记日志并拒绝该回调。
func Resolve(ctx context.Context, req *Request) *Identity {
	if id := byBusinessData(ctx, req); id != nil {
		return id
	}
	if id := byAuthParams(ctx, req); id != nil {
		return id
	}
	if id := byURLPath(ctx, req); id != nil {
		return id
	}
	logger.Logger.Warn("回调无法识别归属景区",
		zap.String("provider", req.Provider),
		zap.String("spot_code", req.SpotCode),
		zap.String("order_no", req.OrderNo),
		zap.String("hotel_code", req.HotelCode))
	return nil
}

// byBusinessData 业务字段反查：酒店编码 → 订单号 → 产品编码
func byBusinessData(ctx context.Context, req *Request) *Identity {
	if req.HotelCode != "" {
		var hotel models.Hotel
		err := database.DB.Where("external_code = ?", req.HotelCode).First(&hotel).Error
		if err == nil {
			return identityForSpot(ctx, hotel.ScenicSpotID, req.Provider, MethodBusinessData)
		}
	}

	if req.OrderNo != "" {
		var order models.Order
		err := database.DB.
			Where("resource_order_no = ? OR order_no = ?", req.OrderNo, req.OrderNo).
			First(&order).Error
		if err == nil {
			if spotID := orderSpotID(&order); spotID != 0 {
				return identityForSpot(ctx, spotID, req.Provider, MethodBusinessData)
			}
		}
	}

	if req.ProductCode != "" {
		var product models.Product
		err := database.DB.Where("external_code = ?", req.ProductCode).First(&product).Error
		if err == nil {
			return identityForSpot(ctx, product.ScenicSpotID, req.Provider, MethodBusinessData)
		}
	}
	return nil
}

// byAuthParams 拿报文里的鉴权参数和库里配置逐条比对
func byAuthParams(ctx context.Context, req *Request) *Identity {
	if len(req.Params) == 0 {
		return nil
	}

	incoming := make([]string, 0, len(authParamKeys))
	for _, key := range authParamKeys {
		if v := req.Params[key]; v != "" {
			incoming = append(incoming, v)
		}
	}
	if len(incoming) == 0 {
		return nil
	}

	configs, err := service.ListEnabledConfigs(ctx, req.Provider)
	if err != nil {
		logger.Logger.Warn("查询资源方配置失败", zap.Error(err))
		return nil
	}

	for i := range configs {
		cfg := &configs[i]
		auth, err := cfg.Auth()
		if err != nil {
			continue
		}
		if authMatches(auth, incoming) {
			spot, err := service.GetScenicSpot(ctx, cfg.ScenicSpotID)
			if err != nil {
				continue
			}
			return &Identity{Spot: spot, Config: cfg, Method: MethodAuthParams}
		}
	}
	return nil
}

// byURLPath URL 显式景区编码
func byURLPath(ctx context.Context, req *Request) *Identity {
	if req.SpotCode == "" {
		return nil
	}
	spot, err := service.GetScenicSpotByCode(ctx, req.SpotCode)
	if err != nil {
		return nil
	}
	cfg, err := service.GetResourceConfig(ctx, spot.ID, req.Provider)
	if err != nil {
		return nil
	}
	return &Identity{Spot: spot, Config: cfg, Method: MethodURLPath}
}

// identityForSpot 按景区补齐配置
func identityForSpot(ctx context.Context, spotID int64, provider string, method Method) *Identity {
	spot, err := service.GetScenicSpot(ctx, spotID)
	if err != nil {
		return nil
	}
	cfg, err := service.GetResourceConfig(ctx, spotID, provider)
	if err != nil {
		return nil
	}
	return &Identity{Spot: spot, Config: cfg, Method: method}
}

// authMatches 报文鉴权参数任一值命中配置即认为归属成立
func authMatches(auth *models.AuthConfig, incoming []string) bool {
	stored := []string{auth.Username, auth.AppKey, auth.Token}
	for _, v := range auth.Custom {
		stored = append(stored, v)
	}
	for _, in := range incoming {
		for _, st := range stored {
			if st != "" && in == st {
				return true
			}
		}
	}
	return false
}

// orderSpotID 订单关联的景区
func orderSpotID(order *models.Order) int64 {
	if order.HotelID != nil {
		var hotel models.Hotel
		if err := database.DB.First(&hotel, *order.HotelID).Error; err == nil {
			return hotel.ScenicSpotID
		}
	}
	if order.ProductID != nil {
		var product models.Product
		if err := database.DB.First(&product, *order.ProductID).Error; err == nil {
			return product.ScenicSpotID
		}
	}
	return 0
}
