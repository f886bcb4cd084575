package resource

import (
	"context"

	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"github.com/golang-trip-core/internal/service"
	"go.uber.org/zap"
)

// 路由操作类型：订单类操作要求 order_mode=auto；
// 同步类操作要求价格或库存至少一个方向是推送，方向各自由配置决定。
const (
	OpOrder = "order"
	OpSync  = "sync"
)

// Route 路由结果
type Route struct {
	Service Service
	Config  *models.ResourceConfig
	Spot    *models.ScenicSpot
}

// Resolve 从订单出发解析资源方路由
// 链路：酒店 → 景区 → 启用配置 → 同步方式闸门 → 注册表分发。
// 任何一环缺失返回 nil，表示走人工流程，从不视为错误。
func Resolve(ctx context.Context, order *models.Order, op string) *Route {
	spotID := resolveSpotID(order)
	if spotID == 0 {
		logger.Logger.Info("订单未关联景区，走人工流程",
			zap.String("order_no", order.OrderNo))
		return nil
	}
	return ResolveSpot(ctx, spotID, op)
}

// ResolveSpot 从景区出发解析资源方路由
func ResolveSpot(ctx context.Context, scenicSpotID int64, op string) *Route {
	spot, err := service.GetScenicSpot(ctx, scenicSpotID)
	if err != nil {
		logger.Logger.Info("景区不存在，走人工流程",
			zap.Int64("scenic_spot_id", scenicSpotID), zap.Error(err))
		return nil
	}
	if spot.ApiType == "" {
		logger.Logger.Info("景区未配置软件商，走人工流程",
			zap.Int64("scenic_spot_id", scenicSpotID))
		return nil
	}

	cfg, err := service.GetResourceConfig(ctx, scenicSpotID, spot.ApiType)
	if err != nil {
		logger.Logger.Info("景区无启用中的资源方配置，走人工流程",
			zap.Int64("scenic_spot_id", scenicSpotID),
			zap.String("provider", spot.ApiType), zap.Error(err))
		return nil
	}

	switch op {
	case OpOrder:
		if cfg.OrderMode != models.OrderModeAuto {
			logger.Logger.Debug("订单处理方式非自动，走人工流程",
				zap.Int64("scenic_spot_id", scenicSpotID),
				zap.String("order_mode", cfg.OrderMode))
			return nil
		}
	case OpSync:
		if cfg.InventoryMode != models.SyncModePush && cfg.PriceMode != models.SyncModePush {
			logger.Logger.Debug("价格与库存同步方式均非推送，跳过",
				zap.Int64("scenic_spot_id", scenicSpotID),
				zap.String("inventory_mode", cfg.InventoryMode),
				zap.String("price_mode", cfg.PriceMode))
			return nil
		}
	}

	svc := New(cfg)
	if svc == nil {
		// 配置指向了无法初始化的软件商，踢掉缓存让修复后的配置立即生效
		service.InvalidateResourceConfig(ctx, scenicSpotID, spot.ApiType)
		return nil
	}
	return &Route{Service: svc, Config: cfg, Spot: spot}
}

// resolveSpotID 订单关联的景区：优先酒店，其次产品
func resolveSpotID(order *models.Order) int64 {
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
