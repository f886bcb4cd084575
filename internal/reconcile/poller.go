package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-trip-core/config"
	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"github.com/golang-trip-core/internal/resource"
	"go.uber.org/zap"
)

// 每轮最多处理的在途订单数
const pollBatchSize = 200

// 单个订单的处理锁期，覆盖一次查询加落库
const orderLockTTL = time.Minute

// Poller 在途订单状态轮询
// 周期性查询待确认/取消申请中的订单在资源方的最新状态并应用迁移；
// 每个订单用 redis 锁串行化，多实例不重复处理。
type Poller struct {
	reconciler *Reconciler
	stop       chan struct{}
}

// NewPoller 创建轮询器
func NewPoller(reconciler *Reconciler) *Poller {
	return &Poller{
		reconciler: reconciler,
		stop:       make(chan struct{}),
	}
}

// Start 启动轮询循环
func (p *Poller) Start() {
	interval := time.Minute
	if cfg := config.GetConfig(); cfg != nil && cfg.Sync.OrderPollInterval > 0 {
		interval = cfg.Sync.OrderPollInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.runOnce(context.Background())
			case <-p.stop:
				return
			}
		}
	}()
	logger.Logger.Info("订单状态轮询已启动", zap.Duration("interval", interval))
}

// Stop 停止轮询
func (p *Poller) Stop() {
	close(p.stop)
}

// runOnce 处理一批在途订单
func (p *Poller) runOnce(ctx context.Context) {
	var orders []models.Order
	err := database.DB.
		Where("status IN ? AND resource_order_no <> ''",
			[]int{models.StatusConfirming, models.StatusCancelPending}).
		Order("id").
		Limit(pollBatchSize).
		Find(&orders).Error
	if err != nil {
		logger.Logger.Error("查询在途订单失败", zap.Error(err))
		return
	}

	for i := range orders {
		p.pollOrder(ctx, &orders[i])
	}
}

// pollOrder 查询单个订单的资源方状态并应用迁移
func (p *Poller) pollOrder(ctx context.Context, order *models.Order) {
	if !p.lockOrder(ctx, order.ID) {
		return
	}

	route := resource.Resolve(ctx, order, resource.OpOrder)
	if route == nil {
		return
	}

	status := route.Service.QueryOrderStatus(ctx, order)
	if !status.Success {
		logger.Logger.Debug("订单状态查询未果",
			zap.String("order_no", order.OrderNo),
			zap.String("message", status.Message))
		return
	}

	switch order.Status {
	case models.StatusConfirming:
		// 资源方已确认/已核销都说明确认成立
		if status.Status == models.StatusConfirmed || status.Status == models.StatusVerified {
			p.reconciler.transition(order, status.Status)
		}
	case models.StatusCancelPending:
		if status.Status == models.StatusCancelApproved {
			p.reconciler.transition(order, models.StatusCancelApproved)
		}
	}
}

// lockOrder 按订单抢锁，抢不到说明别的实例在处理
func (p *Poller) lockOrder(ctx context.Context, orderID int64) bool {
	if database.RDB == nil {
		return true
	}
	key := fmt.Sprintf("trip:lock:order:%d", orderID)
	ok, err := database.RDB.SetNX(ctx, key, time.Now().Unix(), orderLockTTL).Result()
	if err != nil {
		return true
	}
	return ok
}
