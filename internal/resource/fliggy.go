package resource

import (
	"context"
	"fmt"

	"github.com/golang-trip-core/internal/adapter"
	"github.com/golang-trip-core/internal/codec"
	"github.com/golang-trip-core/internal/models"
)

func init() {
	Register(models.ApiTypeFliggyDist, NewFliggyDistService)
}

// FliggyDistService 飞猪分销服务
type FliggyDistService struct {
	cfg     *models.ResourceConfig
	adapter *adapter.FliggyDistAdapter
}

// NewFliggyDistService 按配置构造飞猪分销服务
// 鉴权参数取 distributor_id/private_key（PKCS8 私钥，可不带 PEM 头）。
func NewFliggyDistService(cfg *models.ResourceConfig) (Service, error) {
	auth, err := cfg.Auth()
	if err != nil {
		return nil, err
	}
	distributorID := firstNonEmpty(auth.CustomValue("distributor_id", ""), auth.AppKey)
	privateKey := firstNonEmpty(auth.CustomValue("private_key", ""), auth.Secret)
	if distributorID == "" || privateKey == "" {
		return nil, fmt.Errorf("飞猪分销配置缺少 distributor_id 或 private_key")
	}

	c, err := codec.NewFliggyDistCodec(distributorID, privateKey)
	if err != nil {
		return nil, err
	}
	return &FliggyDistService{
		cfg:     cfg,
		adapter: adapter.NewFliggyDistAdapter(c, cfg.ApiURL),
	}, nil
}

// 飞猪分销订单状态到统一状态词表的映射
var fliggyStatusTable = map[string]int{
	"1001": models.StatusConfirming,
	"1002": models.StatusConfirmed,
	"1003": models.StatusVerified,
	"1004": models.StatusCancelApproved,
	"1005": models.StatusClosed,
}

// 仅这两个状态允许发起取消
var fliggyCancellableStatus = map[string]bool{
	"1001": true,
	"1002": true,
}

// ConfirmOrder 下单确认：先 validateOrder 校验再 createOrder
func (s *FliggyDistService) ConfirmOrder(ctx context.Context, order *models.Order) Result {
	if res, done := confirmShortCircuit(order); done {
		return res
	}

	itemID, err := externalProductID(order, models.ApiTypeFliggyDist)
	if err != nil {
		return Result{Message: err.Error(), NeedManual: true}
	}

	validate := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, "validateOrder", map[string]interface{}{
			"itemId":     itemID,
			"travelDate": order.CheckInDate,
			"quantity":   order.GuestCount,
		})
	})
	if !validate.Success {
		return Result{
			Message:    fmt.Sprintf("下单校验失败 [%s] %s", validate.Code, validate.Message),
			NeedManual: true,
		}
	}

	params := map[string]interface{}{
		"outOrderId": order.OrderNo,
		"itemId":     itemID,
		"travelDate": order.CheckInDate,
		"quantity":   order.GuestCount,
		"totalFee":   order.TotalAmount.String(),
		"buyerPhone": order.ContactPhone,
	}
	if guests := order.Guests(); len(guests) > 0 {
		params["buyerName"] = guests[0].Name
	}

	res := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, "createOrder", params)
	})
	if !res.Success {
		return Result{
			Message:    fmt.Sprintf("下单失败 [%s] %s", res.Code, res.Message),
			NeedManual: true,
		}
	}

	orderID := res.DataString("orderId")
	if orderID == "" {
		return Result{Message: "下单成功但对端未返回单号", NeedManual: true}
	}
	if err := persistResourceOrder(order, orderID, res.DataString("settleFee")); err != nil {
		return Result{Message: "回写资源方单号失败: " + err.Error(), NeedManual: true}
	}

	return Result{
		Success: true,
		Message: "下单成功",
		Data:    map[string]interface{}{"orderId": orderID},
	}
}

// CancelOrder 取消订单；已核销的订单走退款接口
func (s *FliggyDistService) CancelOrder(ctx context.Context, order *models.Order) Result {
	if !order.HasResourceOrder() {
		return Result{Message: "资源方订单号缺失，无法取消"}
	}

	operation := "cancelOrder"
	if order.Status == models.StatusVerified {
		operation = "refundOrder"
	}

	res := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, operation, map[string]interface{}{
			"orderId":    order.ResourceOrderNo,
			"outOrderId": order.OrderNo,
		})
	})
	if !res.Success {
		return Result{
			Message:    fmt.Sprintf("取消失败 [%s] %s", res.Code, res.Message),
			NeedManual: true,
		}
	}
	return Result{Success: true, Message: "取消成功"}
}

// CanCancelOrder 只有 1001/1002 两个状态允许取消
func (s *FliggyDistService) CanCancelOrder(ctx context.Context, order *models.Order) Result {
	raw, res := s.searchOrder(ctx, order)
	if !res.Success {
		return res
	}
	if fliggyCancellableStatus[raw] {
		return Result{Success: true, Message: "可以取消"}
	}
	return Result{Message: "当前状态不可取消: " + raw}
}

// VerifyOrder 核销由分销平台侧完成，此处仅确认
func (s *FliggyDistService) VerifyOrder(ctx context.Context, order *models.Order) Result {
	return Result{Success: true, Message: "核销以分销平台通知为准"}
}

// QueryOrderStatus 查询订单状态并映射到统一词表
func (s *FliggyDistService) QueryOrderStatus(ctx context.Context, order *models.Order) StatusResult {
	raw, res := s.searchOrder(ctx, order)
	if !res.Success {
		return StatusResult{Result: res}
	}
	status, known := fliggyStatusTable[raw]
	if !known {
		return StatusResult{Result: Result{Message: "未知的分销订单状态 " + raw}}
	}
	return StatusResult{
		Result: Result{Success: true},
		Status: status,
	}
}

// searchOrder 查单并取原始状态码
func (s *FliggyDistService) searchOrder(ctx context.Context, order *models.Order) (string, Result) {
	if !order.HasResourceOrder() {
		return "", Result{Message: "资源方订单号缺失"}
	}

	res := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, "searchOrder", map[string]interface{}{
			"orderId": order.ResourceOrderNo,
		})
	})
	if !res.Success {
		return "", Result{Message: fmt.Sprintf("查询失败 [%s] %s", res.Code, res.Message)}
	}

	raw := res.DataString("orderStatus")
	if raw == "" {
		return "", Result{Message: "响应缺少 orderStatus"}
	}
	return raw, Result{Success: true}
}
