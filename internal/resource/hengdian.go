package resource

import (
	"context"
	"fmt"

	"github.com/golang-trip-core/internal/adapter"
	"github.com/golang-trip-core/internal/codec"
	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/models"
)

func init() {
	Register(models.ApiTypeHengdian, NewHengdianService)
}

// HengdianService 横店酒店系统服务
type HengdianService struct {
	cfg     *models.ResourceConfig
	adapter *adapter.HengdianAdapter
}

// NewHengdianService 按配置构造横店服务
// 默认账号走 username/password；渠道专用账号放自定义参数
// username_ctrip/password_ctrip 等，按订单渠道选择。
func NewHengdianService(cfg *models.ResourceConfig) (Service, error) {
	auth, err := cfg.Auth()
	if err != nil {
		return nil, err
	}
	username := firstNonEmpty(auth.Username, auth.CustomValue("username", ""))
	password := firstNonEmpty(auth.Password, auth.CustomValue("password", ""))
	if username == "" || password == "" {
		return nil, fmt.Errorf("横店配置缺少用户名或密码")
	}

	creds := make(map[string][2]string)
	for _, platform := range []string{"ctrip", "fliggy", "meituan"} {
		u := auth.CustomValue("username", platform)
		p := auth.CustomValue("password", platform)
		if u != "" && p != "" {
			creds[platform] = [2]string{u, p}
		}
	}

	c := &codec.HengdianCodec{
		Username:            username,
		Password:            password,
		PlatformCredentials: creds,
	}
	return &HengdianService{
		cfg:     cfg,
		adapter: adapter.NewHengdianAdapter(c, cfg.ApiURL),
	}, nil
}

// 横店 OrderStatus 到统一状态词表的映射
var hengdianStatusTable = map[string]int{
	"0": models.StatusConfirming,
	"1": models.StatusConfirmed,
	"2": models.StatusVerified,
	"3": models.StatusCancelApproved,
}

// otaPlatformSuffix 渠道编号转凭证后缀
func otaPlatformSuffix(otaPlatform int) string {
	switch otaPlatform {
	case models.OtaCtrip:
		return "ctrip"
	case models.OtaFliggy:
		return "fliggy"
	case models.OtaMeituan:
		return "meituan"
	}
	return ""
}

// ConfirmOrder 下单确认：ValidateRQ 校验后 BookRQ 落单
func (s *HengdianService) ConfirmOrder(ctx context.Context, order *models.Order) Result {
	if res, done := confirmShortCircuit(order); done {
		return res
	}

	body, err := s.bookBody(order)
	if err != nil {
		return Result{Message: err.Error(), NeedManual: true}
	}
	platform := otaPlatformSuffix(order.OtaPlatform)

	validate := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, "ValidateRQ", platform, body)
	})
	if !validate.Success {
		return Result{
			Message:    fmt.Sprintf("下单校验失败 [%s] %s", validate.Code, validate.Message),
			NeedManual: true,
		}
	}

	res := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, "BookRQ", platform, body)
	})
	if !res.Success {
		return Result{
			Message:    fmt.Sprintf("下单失败 [%s] %s", res.Code, res.Message),
			NeedManual: true,
		}
	}

	raw, _ := res.Data.(string)
	orderNo := codec.ExtractElement([]byte(raw), "OrderNo")
	if orderNo == "" {
		return Result{Message: "下单成功但对端未返回单号", NeedManual: true}
	}
	settlement := codec.ExtractElement([]byte(raw), "SettlementAmount")
	if err := persistResourceOrder(order, orderNo, settlement); err != nil {
		return Result{Message: "回写资源方单号失败: " + err.Error(), NeedManual: true}
	}

	return Result{
		Success: true,
		Message: "下单成功",
		Data:    map[string]interface{}{"orderNo": orderNo},
	}
}

// CancelOrder 取消订单
func (s *HengdianService) CancelOrder(ctx context.Context, order *models.Order) Result {
	if !order.HasResourceOrder() {
		return Result{Message: "资源方订单号缺失，无法取消"}
	}

	res := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, "CancelRQ", otaPlatformSuffix(order.OtaPlatform), map[string]interface{}{
			"OrderNo":      order.ResourceOrderNo,
			"ThirdOrderNo": order.OrderNo,
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

// CanCancelOrder 入住/核销前可取消
func (s *HengdianService) CanCancelOrder(ctx context.Context, order *models.Order) Result {
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

// VerifyOrder 入住状态由房态订阅回调驱动，此处仅确认
func (s *HengdianService) VerifyOrder(ctx context.Context, order *models.Order) Result {
	return Result{Success: true, Message: "入住核销以房态回调为准"}
}

// QueryOrderStatus 查询订单状态并映射到统一词表
func (s *HengdianService) QueryOrderStatus(ctx context.Context, order *models.Order) StatusResult {
	if !order.HasResourceOrder() {
		return StatusResult{Result: Result{Message: "资源方订单号缺失"}}
	}

	res := callWithRetry(ctx, func() adapter.Result {
		return s.adapter.Send(ctx, "QueryStatusRQ", otaPlatformSuffix(order.OtaPlatform), map[string]interface{}{
			"OrderNo": order.ResourceOrderNo,
		})
	})
	if !res.Success {
		return StatusResult{Result: Result{
			Message: fmt.Sprintf("查询失败 [%s] %s", res.Code, res.Message),
		}}
	}

	raw, _ := res.Data.(string)
	statusText := codec.ExtractElement([]byte(raw), "OrderStatus")
	status, known := hengdianStatusTable[statusText]
	if !known {
		return StatusResult{Result: Result{Message: "未知的横店订单状态 " + statusText}}
	}
	return StatusResult{
		Result: Result{Success: true},
		Status: status,
	}
}

// bookBody 构造校验/下单共用的报文体
func (s *HengdianService) bookBody(order *models.Order) (map[string]interface{}, error) {
	roomTypeCode, err := externalProductID(order, models.ApiTypeHengdian)
	if err != nil {
		return nil, err
	}

	hotelCode := ""
	if order.HotelID != nil {
		var hotel models.Hotel
		if err := database.DB.First(&hotel, *order.HotelID).Error; err != nil {
			return nil, fmt.Errorf("查询酒店 %d 失败: %w", *order.HotelID, err)
		}
		hotelCode = hotel.ExternalCode
	}
	if hotelCode == "" {
		return nil, fmt.Errorf("订单 %s 缺少酒店外部编码", order.OrderNo)
	}

	guests := make([]map[string]interface{}, 0)
	for _, g := range order.Guests() {
		guests = append(guests, map[string]interface{}{
			"Name":   g.Name,
			"CardNo": g.CredentialNo,
		})
	}

	return map[string]interface{}{
		"ThirdOrderNo": order.OrderNo,
		"HotelCode":    hotelCode,
		"RoomTypeCode": roomTypeCode,
		"CheckInDate":  order.CheckInDate,
		"CheckOutDate": order.CheckOutDate,
		"RoomCount":    order.RoomCount,
		"GuestCount":   order.GuestCount,
		"TotalAmount":  order.TotalAmount.String(),
		"ContactPhone": order.ContactPhone,
		"Guest":        guests,
	}, nil
}
