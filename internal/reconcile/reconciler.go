package reconcile

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"github.com/golang-trip-core/internal/mq"
	"github.com/golang-trip-core/internal/resource"
	"github.com/golang-trip-core/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reconciler 订单对账编排
// 把资源方操作结果落到订单状态机；业务失败落异常单转人工，
// 路由缺失视为人工流程跳过，从不报错。
type Reconciler struct{}

// NewReconciler 创建对账编排器并注册回调消费处理
func NewReconciler() *Reconciler {
	r := &Reconciler{}
	mq.RegisterHandler(mq.TopicResourceWebhook, r.handleWebhookMessage)
	mq.RegisterHandler(mq.TopicOrderJob, r.handleOrderJob)
	return r
}

// RequestCancel 渠道发起取消：先迁到取消申请中，再向资源方取消
func (r *Reconciler) RequestCancel(ctx context.Context, order *models.Order) {
	r.transition(order, models.StatusCancelPending)
	if order.Status != models.StatusCancelPending {
		return
	}
	r.CancelOrder(ctx, order)
}

// handleOrderJob 消费订单操作任务
func (r *Reconciler) handleOrderJob(ctx context.Context, body []byte) error {
	var msg mq.OrderJobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return err
	}

	var order models.Order
	if err := database.DB.First(&order, msg.OrderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			logger.Logger.Warn("订单任务指向的订单不存在", zap.Int64("order_id", msg.OrderID))
			return nil
		}
		return err
	}

	switch msg.Action {
	case mq.ActionConfirm:
		r.ConfirmOrder(ctx, &order)
	case mq.ActionCancel:
		r.RequestCancel(ctx, &order)
	case mq.ActionVerify:
		r.VerifyOrder(ctx, &order)
	default:
		logger.Logger.Warn("未知的订单任务动作", zap.String("action", msg.Action))
	}
	return nil
}

// ConfirmOrder 向资源方确认订单
func (r *Reconciler) ConfirmOrder(ctx context.Context, order *models.Order) {
	route := resource.Resolve(ctx, order, resource.OpOrder)
	if route == nil {
		return
	}

	res := route.Service.ConfirmOrder(ctx, order)
	if res.Success {
		r.transition(order, models.StatusConfirmed)
		return
	}
	if res.NeedManual {
		r.escalate(order, "订单确认失败", res.Message)
	}
}

// CancelOrder 向资源方取消订单
// 先查可取消性：不可取消直接置为取消被拒绝。
func (r *Reconciler) CancelOrder(ctx context.Context, order *models.Order) {
	route := resource.Resolve(ctx, order, resource.OpOrder)
	if route == nil {
		return
	}

	can := route.Service.CanCancelOrder(ctx, order)
	if !can.Success {
		logger.Logger.Info("订单不可取消",
			zap.String("order_no", order.OrderNo),
			zap.String("reason", can.Message))
		r.transition(order, models.StatusCancelRejected)
		return
	}

	res := route.Service.CancelOrder(ctx, order)
	if res.Success {
		r.transition(order, models.StatusCancelApproved)
		return
	}
	if res.NeedManual {
		r.escalate(order, "订单取消失败", res.Message)
	}
}

// VerifyOrder 核销订单
func (r *Reconciler) VerifyOrder(ctx context.Context, order *models.Order) {
	route := resource.Resolve(ctx, order, resource.OpOrder)
	if route == nil {
		return
	}

	res := route.Service.VerifyOrder(ctx, order)
	if res.Success {
		r.transition(order, models.StatusVerified)
		return
	}
	if res.NeedManual {
		r.escalate(order, "订单核销失败", res.Message)
	}
}

// 合法状态迁移表；核销可从确认后的任意在途状态发生。
// 待确认期间资源方可能已确认并核销（轮询间隙完成），所以待确认也能直达已核销。
var allowedTransitions = map[int][]int{
	models.StatusConfirming: {
		models.StatusConfirmed, models.StatusVerified,
		models.StatusCancelPending, models.StatusClosed,
	},
	models.StatusConfirmed: {
		models.StatusVerified, models.StatusCancelPending,
		models.StatusCancelApproved, models.StatusClosed,
	},
	models.StatusCancelPending: {models.StatusCancelApproved, models.StatusCancelRejected},
	models.StatusCancelRejected: {
		models.StatusVerified, models.StatusCancelPending, models.StatusClosed,
	},
}

// canTransition 状态迁移是否合法；目标与当前相同视为幂等成功
func canTransition(from, to int) bool {
	if from == to {
		return true
	}
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// transition 应用状态迁移并落时间戳
func (r *Reconciler) transition(order *models.Order, to int) {
	if order.Status == to {
		return
	}
	if !canTransition(order.Status, to) {
		logger.Logger.Warn("忽略非法状态迁移",
			zap.String("order_no", order.OrderNo),
			zap.String("from", models.StatusText(order.Status)),
			zap.String("to", models.StatusText(to)))
		return
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":          to,
		"update_datetime": &now,
	}
	switch to {
	case models.StatusConfirmed:
		updates["confirmed_at"] = &now
	case models.StatusCancelApproved:
		updates["cancelled_at"] = &now
	}

	if err := database.DB.Model(&models.Order{}).
		Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		logger.Logger.Error("订单状态落库失败",
			zap.String("order_no", order.OrderNo), zap.Error(err))
		return
	}

	logger.Logger.Info("订单状态迁移",
		zap.String("order_no", order.OrderNo),
		zap.String("from", models.StatusText(order.Status)),
		zap.String("to", models.StatusText(to)))
	orderTransitionsTotal.WithLabelValues(
		models.StatusText(order.Status), models.StatusText(to)).Inc()
	order.Status = to
}

// escalate 落异常单，Detail 保留对端原文
func (r *Reconciler) escalate(order *models.Order, title, detail string) {
	exType := models.ExceptionTypeAPIError
	lower := strings.ToLower(detail)
	if strings.Contains(detail, "超时") || strings.Contains(lower, "timeout") {
		exType = models.ExceptionTypeTimeout
	}
	orderEscalationsTotal.WithLabelValues(exType).Inc()
	service.EscalateException(order.ID, exType, title+": "+order.OrderNo, detail)
}

// handleWebhookMessage 消费资源方回调事件
func (r *Reconciler) handleWebhookMessage(ctx context.Context, body []byte) error {
	var msg mq.WebhookMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return err
	}
	return r.ApplyEvent(ctx, &msg)
}

// ApplyEvent 资源方回调事件驱动的状态迁移
func (r *Reconciler) ApplyEvent(ctx context.Context, msg *mq.WebhookMessage) error {
	if msg.Event == mq.EventRoomStatus {
		// 房态事件只记录，库存同步由定时任务处理
		logger.Logger.Info("收到房态回调",
			zap.String("provider", msg.Provider),
			zap.Int64("scenic_spot_id", msg.ScenicSpotID))
		return nil
	}
	if msg.OrderNo == "" {
		logger.Logger.Warn("回调事件缺少订单号", zap.String("event", msg.Event))
		return nil
	}

	var order models.Order
	err := database.DB.
		Where("resource_order_no = ? OR order_no = ?", msg.OrderNo, msg.OrderNo).
		First(&order).Error
	if err == gorm.ErrRecordNotFound {
		logger.Logger.Warn("回调订单不存在",
			zap.String("order_no", msg.OrderNo), zap.String("event", msg.Event))
		return nil
	}
	if err != nil {
		return err
	}

	switch msg.Event {
	case mq.EventOrderConfirmed:
		r.transition(&order, models.StatusConfirmed)
	case mq.EventOrderCancelled:
		r.transition(&order, models.StatusCancelApproved)
	case mq.EventOrderVerified:
		r.transition(&order, models.StatusVerified)
	default:
		logger.Logger.Warn("未知的回调事件", zap.String("event", msg.Event))
	}
	return nil
}
