package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-trip-core/internal/adapter"
	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"go.uber.org/zap"
)

// Result 资源方操作统一返回值
// NeedManual 为真表示业务侧失败，需要转人工处理，调用方据此落异常单。
type Result struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
	NeedManual bool                   `json:"need_manual"`
}

// StatusResult 订单状态查询返回值，Status 为统一状态词表取值
type StatusResult struct {
	Result
	Status int `json:"status"`
}

// Service 资源方服务统一接口
// 所有实现共享同一组语义约束：
//   - ConfirmOrder 幂等，resource_order_no 已写入时直接短路返回成功，零外呼；
//   - CancelOrder 要求 resource_order_no 已存在；
//   - 业务失败从不重试，传输失败按固定策略重试后仍失败则转人工。
type Service interface {
	ConfirmOrder(ctx context.Context, order *models.Order) Result
	CancelOrder(ctx context.Context, order *models.Order) Result
	CanCancelOrder(ctx context.Context, order *models.Order) Result
	VerifyOrder(ctx context.Context, order *models.Order) Result
	QueryOrderStatus(ctx context.Context, order *models.Order) StatusResult
}

// Factory 按资源方配置构造服务实例
type Factory func(cfg *models.ResourceConfig) (Service, error)

var registry = make(map[string]Factory)

// Register 注册软件商服务工厂，各实现在包 init 中自注册
func Register(apiType string, factory Factory) {
	registry[apiType] = factory
}

// New 按配置构造资源方服务
// 未注册的软件商类型返回 nil，调用方按人工流程处理。
func New(cfg *models.ResourceConfig) Service {
	factory, ok := registry[cfg.Provider]
	if !ok {
		logger.Logger.Warn("未注册的资源方软件商类型",
			zap.String("provider", cfg.Provider),
			zap.Int64("scenic_spot_id", cfg.ScenicSpotID))
		return nil
	}
	svc, err := factory(cfg)
	if err != nil {
		logger.Logger.Warn("资源方服务初始化失败",
			zap.String("provider", cfg.Provider),
			zap.Int64("config_id", cfg.ID),
			zap.Error(err))
		return nil
	}
	return svc
}

// externalProductID 查产品在目标系统的标识
// 优先走映射表，缺映射时回落到产品自带的外部编码。
func externalProductID(order *models.Order, target string) (string, error) {
	if order.ProductID == nil {
		return "", fmt.Errorf("订单 %s 未关联产品", order.OrderNo)
	}

	var mapping models.ProductMapping
	err := database.DB.Where("product_id = ? AND target = ?", *order.ProductID, target).
		First(&mapping).Error
	if err == nil && mapping.ExternalID != "" {
		return mapping.ExternalID, nil
	}

	var product models.Product
	if err := database.DB.First(&product, *order.ProductID).Error; err != nil {
		return "", fmt.Errorf("查询产品 %d 失败: %w", *order.ProductID, err)
	}
	if product.ExternalCode == "" {
		return "", fmt.Errorf("产品 %d 缺少 %s 侧标识", *order.ProductID, target)
	}
	return product.ExternalCode, nil
}

// persistResourceOrder 回写资源方订单号与结算金额
// resource_order_no 只写一次；已有值时静默跳过，保证幂等。
func persistResourceOrder(order *models.Order, resourceOrderNo, settlementAmount string) error {
	if order.HasResourceOrder() {
		return nil
	}
	now := time.Now()
	updates := map[string]interface{}{
		"resource_order_no": resourceOrderNo,
		"update_datetime":   &now,
	}
	if settlementAmount != "" {
		updates["settlement_amount"] = settlementAmount
	}
	err := database.DB.Model(&models.Order{}).
		Where("id = ? AND (resource_order_no IS NULL OR resource_order_no = '')", order.ID).
		Updates(updates).Error
	if err != nil {
		return err
	}
	order.ResourceOrderNo = resourceOrderNo
	return nil
}

// firstNonEmpty 返回第一个非空串
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// dataNumber 从适配器响应数据中取数值字段
func dataNumber(res adapter.Result, key string) (float64, bool) {
	m := res.DataMap()
	if m == nil {
		return 0, false
	}
	v, ok := m[key].(float64)
	return v, ok
}

// confirmShortCircuit 幂等短路：资源方订单号已写入则直接成功，不发任何外呼
func confirmShortCircuit(order *models.Order) (Result, bool) {
	if order.HasResourceOrder() {
		return Result{
			Success: true,
			Message: "资源方订单已存在: " + order.ResourceOrderNo,
		}, true
	}
	return Result{}, false
}
