package resource

import (
	"context"
	"fmt"

	"github.com/golang-trip-core/internal/adapter"
	"github.com/golang-trip-core/internal/codec"
	"github.com/golang-trip-core/internal/models"
)

func init() {
	Register(models.ApiTypeZiwoyou, NewZiwoyouService)
}

// ZiwoyouService 自我游票务服务
type ZiwoyouService struct {
	cfg     *models.ResourceConfig
	adapter *adapter.ZiwoyouAdapter
}

// NewZiwoyouService 按配置构造自我游服务
// 鉴权参数取 cust_id/api_key，或 direct_key 直连模式（免签名）。
func NewZiwoyouService(cfg *models.ResourceConfig) (Service, error) {
	auth, err := cfg.Auth()
	if err != nil {
		return nil, err
	}
	c := &codec.ZiwoyouCodec{
		CustID:    firstNonEmpty(auth.CustomValue("cust_id", ""), auth.AppKey),
		APIKey:    firstNonEmpty(auth.CustomValue("api_key", ""), auth.Secret),
		DirectKey: auth.CustomValue("direct_key", "") == "1",
	}
	if c.CustID == "" {
		return nil, fmt.Errorf("自我游配置缺少 cust_id")
	}
	return &ZiwoyouService{
		cfg:     cfg,
		adapter: adapter.NewZiwoyouAdapter(c, cfg.ApiURL),
	}, nil
}

// 自我游 orderState 到统一状态词表的映射
var ziwoyouStatusTable = map[int]int{
	0: models.StatusConfirming,
	1: models.StatusConfirmed,
	2: models.StatusConfirmed,
	3: models.StatusCancelApproved,
	4: models.StatusVerified,
}

// ConfirmOrder 下单确认：先占位校验再下单，下单成功后通知支付
func (s *ZiwoyouService) ConfirmOrder(ctx context.Context, order *models.Order) Result {
	if res, done := confirmShortCircuit(order); done {
		return res
	}

	productNo, err := externalProductID(order, models.ApiTypeZiwoyou)
	if err != nil {
		return Result{Message: err.Error(), NeedManual: true}
	}

	payload := s.orderPayload(order, productNo)

	// 先做库存校验，业务拒绝直接转人工
	check := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, "check", payload)
	})
	if !check.Success {
		return Result{
			Message:    fmt.Sprintf("库存校验失败 [%s] %s", check.Code, check.Message),
			NeedManual: true,
		}
	}

	res := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, "add", payload)
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
	if err := persistResourceOrder(order, orderID, res.DataString("settlePrice")); err != nil {
		return Result{Message: "回写资源方单号失败: " + err.Error(), NeedManual: true}
	}

	// 通知支付，失败不回滚已落的单号
	pay := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, "pay", map[string]interface{}{
			"orderId":      orderID,
			"thirdOrderNo": order.OrderNo,
		})
	})
	if !pay.Success {
		return Result{
			Message:    fmt.Sprintf("下单成功但支付通知失败 [%s] %s", pay.Code, pay.Message),
			NeedManual: true,
			Data:       map[string]interface{}{"orderId": orderID},
		}
	}

	return Result{
		Success: true,
		Message: "下单成功",
		Data:    map[string]interface{}{"orderId": orderID},
	}
}

// CancelOrder 取消订单
// 对端 state==0 不代表取消生效，必须 cancelState==1。
func (s *ZiwoyouService) CancelOrder(ctx context.Context, order *models.Order) Result {
	if !order.HasResourceOrder() {
		return Result{Message: "资源方订单号缺失，无法取消"}
	}

	res := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, "cancel", map[string]interface{}{
			"orderId":      order.ResourceOrderNo,
			"thirdOrderNo": order.OrderNo,
		})
	})
	if !res.Success {
		return Result{
			Message:    fmt.Sprintf("取消失败 [%s] %s", res.Code, res.Message),
			NeedManual: true,
		}
	}

	cancelState, ok := dataNumber(res, "cancelState")
	if !ok || int(cancelState) != 1 {
		return Result{
			Message:    fmt.Sprintf("取消未生效，cancelState=%v，%s", res.DataMap()["cancelState"], res.Message),
			NeedManual: true,
		}
	}
	return Result{Success: true, Message: "取消成功"}
}

// CanCancelOrder 核销前可取消，核销后不可
func (s *ZiwoyouService) CanCancelOrder(ctx context.Context, order *models.Order) Result {
	status := s.QueryOrderStatus(ctx, order)
	if !status.Success {
		return status.Result
	}
	switch status.Status {
	case models.StatusConfirming, models.StatusConfirmed:
		return Result{Success: true, Message: "可以取消"}
	default:
		return Result{Message: "当前状态不可取消: " + models.StatusText(status.Status)}
	}
}

// VerifyOrder 核销由资源方回调驱动，此处仅确认
func (s *ZiwoyouService) VerifyOrder(ctx context.Context, order *models.Order) Result {
	return Result{Success: true, Message: "核销以资源方回调为准"}
}

// QueryOrderStatus 查询订单状态并映射到统一词表
func (s *ZiwoyouService) QueryOrderStatus(ctx context.Context, order *models.Order) StatusResult {
	if !order.HasResourceOrder() {
		return StatusResult{Result: Result{Message: "资源方订单号缺失"}}
	}

	res := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, "detail", map[string]interface{}{
			"orderId": order.ResourceOrderNo,
		})
	})
	if !res.Success {
		return StatusResult{Result: Result{
			Message: fmt.Sprintf("查询失败 [%s] %s", res.Code, res.Message),
		}}
	}

	orderState, ok := dataNumber(res, "orderState")
	if !ok {
		return StatusResult{Result: Result{Message: "响应缺少 orderState"}}
	}
	status, known := ziwoyouStatusTable[int(orderState)]
	if !known {
		return StatusResult{Result: Result{
			Message: fmt.Sprintf("未知的自我游订单状态 %d", int(orderState)),
		}}
	}

	return StatusResult{
		Result: Result{Success: true, Data: res.DataMap()},
		Status: status,
	}
}

// orderPayload 构造下单/校验共用的业务报文
func (s *ZiwoyouService) orderPayload(order *models.Order, productNo string) map[string]interface{} {
	guests := order.Guests()
	tourists := make([]map[string]string, 0, len(guests))
	for _, g := range guests {
		tourists = append(tourists, map[string]string{
			"name":     g.Name,
			"cardNo":   g.CredentialNo,
			"cardType": g.CredentialType,
		})
	}

	linkName := ""
	if len(guests) > 0 {
		linkName = guests[0].Name
	}

	return map[string]interface{}{
		"productNo":    productNo,
		"thirdOrderNo": order.OrderNo,
		"travelDate":   order.CheckInDate,
		"quantity":     order.GuestCount,
		"totalPrice":   order.TotalAmount.String(),
		"linkName":     linkName,
		"linkPhone":    order.ContactPhone,
		"tourists":     tourists,
	}
}
