package controller

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-trip-core/internal/codec"
	"github.com/golang-trip-core/internal/identify"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/middleware"
	"github.com/golang-trip-core/internal/models"
	"github.com/golang-trip-core/internal/mq"
	"github.com/golang-trip-core/internal/reconcile"
	"go.uber.org/zap"
)

// WebhookController 资源方回调控制器
// 职责只有三件事：识别归属、入队、按各家协议立刻应答；
// 实际的订单状态迁移由消费端的对账编排器完成。
type WebhookController struct {
	reconciler *reconcile.Reconciler
}

// NewWebhookController 创建回调控制器
func NewWebhookController(reconciler *reconcile.Reconciler) *WebhookController {
	return &WebhookController{reconciler: reconciler}
}

// enqueue 回调消息入队，队列不可用时降级为本地处理
func (c *WebhookController) enqueue(ctx context.Context, id *identify.Identity, provider, event, orderNo string, payload []byte) {
	msg := &mq.WebhookMessage{
		Provider:     provider,
		ScenicSpotID: id.Spot.ID,
		ConfigID:     id.Config.ID,
		Event:        event,
		OrderNo:      orderNo,
		Payload:      payload,
		ReceivedAt:   time.Now().Unix(),
	}
	middleware.ObserveWebhook(provider, event)
	mq.Enqueue(ctx, mq.TopicResourceWebhook, event, msg, func() {
		if err := c.reconciler.ApplyEvent(context.Background(), msg); err != nil {
			logger.Logger.Error("本地处理回调失败",
				zap.String("provider", provider),
				zap.String("order_no", orderNo),
				zap.Error(err))
		}
	})
}

// ziwoyouNotify 自我游回调报文
type ziwoyouNotify struct {
	CustID    string `json:"custId"`
	Timestamp int64  `json:"timestamp"`
	Sign      string `json:"sign"`
	Param     struct {
		OrderID      string `json:"orderId"`
		ThirdOrderNo string `json:"thirdOrderNo"`
		OrderState   *int   `json:"orderState"`
	} `json:"param"`
}

// 自我游 orderState 到回调事件的映射
var ziwoyouEventTable = map[int]string{
	1: mq.EventOrderConfirmed,
	2: mq.EventOrderConfirmed,
	3: mq.EventOrderCancelled,
	4: mq.EventOrderVerified,
}

// ZiwoyouCallback 自我游订单状态回调
// 应答 {"state":0} 表示接收成功，对端据此停止重推。
func (c *WebhookController) ZiwoyouCallback(ctx *gin.Context) {
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		ctx.JSON(http.StatusOK, gin.H{"state": 1, "msg": "读取报文失败"})
		return
	}

	var notify ziwoyouNotify
	if err := json.Unmarshal(body, &notify); err != nil {
		ctx.JSON(http.StatusOK, gin.H{"state": 1, "msg": "报文格式错误"})
		return
	}

	orderNo := firstNonEmptyStr(notify.Param.OrderID, notify.Param.ThirdOrderNo)
	id := identify.Resolve(ctx.Request.Context(), &identify.Request{
		Provider: models.ApiTypeZiwoyou,
		SpotCode: ctx.Param("spot_code"),
		OrderNo:  orderNo,
	})
	if id == nil {
		ctx.JSON(http.StatusOK, gin.H{"state": 1, "msg": "无法识别回调归属"})
		return
	}

	event := mq.EventOrderConfirmed
	if notify.Param.OrderState != nil {
		if mapped, ok := ziwoyouEventTable[*notify.Param.OrderState]; ok {
			event = mapped
		} else {
			logger.Logger.Warn("自我游回调携带未知状态",
				zap.Int("order_state", *notify.Param.OrderState),
				zap.String("order_no", orderNo))
		}
	}

	c.enqueue(ctx.Request.Context(), id, models.ApiTypeZiwoyou, event, orderNo, body)
	ctx.JSON(http.StatusOK, gin.H{"state": 0, "msg": "成功"})
}

// 横店 OrderStatus 到回调事件的映射
var hengdianEventTable = map[string]string{
	"1": mq.EventOrderConfirmed,
	"2": mq.EventOrderVerified,
	"3": mq.EventOrderCancelled,
}

// HengdianCallback 横店 XML 回调
// 订单状态与房态共用入口：报文带 OrderNo 走订单事件，否则按房态处理。
func (c *WebhookController) HengdianCallback(ctx *gin.Context) {
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		hengdianAck(ctx, "1", "读取报文失败")
		return
	}

	orderNo := codec.ExtractElement(body, "OrderNo")
	id := identify.Resolve(ctx.Request.Context(), &identify.Request{
		Provider:  models.ApiTypeHengdian,
		SpotCode:  ctx.Param("spot_code"),
		OrderNo:   orderNo,
		HotelCode: codec.ExtractElement(body, "HotelCode"),
		Params:    map[string]string{"username": codec.ExtractElement(body, "Username")},
	})
	if id == nil {
		hengdianAck(ctx, "1", "无法识别回调归属")
		return
	}

	event := mq.EventRoomStatus
	if orderNo != "" {
		event = mq.EventOrderConfirmed
		if mapped, ok := hengdianEventTable[codec.ExtractElement(body, "OrderStatus")]; ok {
			event = mapped
		}
	}

	c.enqueue(ctx.Request.Context(), id, models.ApiTypeHengdian, event, orderNo, body)
	hengdianAck(ctx, "0", "成功")
}

// hengdianAck 横店 XML 应答
func hengdianAck(ctx *gin.Context, code, message string) {
	ctx.Data(http.StatusOK, "application/xml; charset=utf-8",
		[]byte(xml.Header+"<Response><ResultCode>"+code+"</ResultCode><Message>"+message+"</Message></Response>"))
}

// 飞猪分销 orderStatus 到回调事件的映射
var fliggyEventTable = map[string]string{
	"1002": mq.EventOrderConfirmed,
	"1003": mq.EventOrderVerified,
	"1004": mq.EventOrderCancelled,
}

// FliggyCallback 飞猪分销订单状态回调（表单参数）
func (c *WebhookController) FliggyCallback(ctx *gin.Context) {
	orderID := ctx.PostForm("orderId")
	outOrderID := ctx.PostForm("outOrderId")
	orderNo := firstNonEmptyStr(orderID, outOrderID)

	id := identify.Resolve(ctx.Request.Context(), &identify.Request{
		Provider: models.ApiTypeFliggyDist,
		SpotCode: ctx.Param("spot_code"),
		OrderNo:  orderNo,
	})
	if id == nil {
		ctx.JSON(http.StatusOK, gin.H{"code": "4001", "msg": "无法识别回调归属"})
		return
	}

	event := mq.EventOrderConfirmed
	if mapped, ok := fliggyEventTable[ctx.PostForm("orderStatus")]; ok {
		event = mapped
	}

	payload, _ := json.Marshal(ctx.Request.PostForm)
	c.enqueue(ctx.Request.Context(), id, models.ApiTypeFliggyDist, event, orderNo, payload)
	ctx.JSON(http.StatusOK, gin.H{"code": "2000", "msg": "success"})
}

// firstNonEmptyStr 返回第一个非空串
func firstNonEmptyStr(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
