package syncsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang-trip-core/config"
	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"github.com/golang-trip-core/internal/mq"
	"go.uber.org/zap"
)

// 多实例部署时同一轮全量同步只跑一个实例
const priceStockLockKey = "trip:lock:price_stock_sync"

// Scheduler 价格/库存定时同步调度器
// 周期性给每个上架产品投一条同步任务，由消费端执行推送；
// 队列不可用时退化为本地 goroutine。
type Scheduler struct {
	pusher *Pusher
	stop   chan struct{}
}

// NewScheduler 创建调度器并注册任务消费处理
func NewScheduler(pusher *Pusher) *Scheduler {
	s := &Scheduler{
		pusher: pusher,
		stop:   make(chan struct{}),
	}
	mq.RegisterHandler(mq.TopicSyncJob, s.handleSyncJob)
	return s
}

// Start 启动调度循环
func (s *Scheduler) Start() {
	interval := 10 * time.Minute
	if cfg := config.GetConfig(); cfg != nil && cfg.Sync.PriceStockInterval > 0 {
		interval = cfg.Sync.PriceStockInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runOnce(context.Background(), interval)
			case <-s.stop:
				return
			}
		}
	}()
	logger.Logger.Info("价格库存同步调度器已启动", zap.Duration("interval", interval))
}

// Stop 停止调度
func (s *Scheduler) Stop() {
	close(s.stop)
}

// runOnce 给每个上架产品投一条同步任务
func (s *Scheduler) runOnce(ctx context.Context, interval time.Duration) {
	if !s.acquireLock(ctx, interval) {
		return
	}

	var products []models.Product
	if err := database.DB.Where("enabled = ?", true).Find(&products).Error; err != nil {
		logger.Logger.Error("查询上架产品失败", zap.Error(err))
		return
	}

	for i, product := range products {
		productID := product.ID
		msg := mq.SyncJobMessage{ProductID: productID, Timestamp: time.Now().Unix()}
		// 错峰投递，整点全量外呼会打到渠道限流
		delay := time.Duration(i%60) * time.Second
		mq.EnqueueDelayed(ctx, mq.TopicSyncJob, "", msg, delay, func() {
			if err := s.pusher.SyncProduct(context.Background(), productID); err != nil {
				logger.Logger.Warn("本地同步任务失败",
					zap.Int64("product_id", productID), zap.Error(err))
			}
		})
	}
	logger.Logger.Info("本轮同步任务已投递", zap.Int("products", len(products)))
}

// acquireLock SET NX EX 抢锁，锁期与调度周期一致
func (s *Scheduler) acquireLock(ctx context.Context, ttl time.Duration) bool {
	if database.RDB == nil {
		return true
	}
	ok, err := database.RDB.SetNX(ctx, priceStockLockKey, time.Now().Unix(), ttl).Result()
	if err != nil {
		logger.Logger.Warn("抢同步锁失败，本轮继续执行", zap.Error(err))
		return true
	}
	return ok
}

// handleSyncJob 消费同步任务
func (s *Scheduler) handleSyncJob(ctx context.Context, body []byte) error {
	var msg mq.SyncJobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return err
	}
	return s.pusher.SyncProduct(ctx, msg.ProductID)
}
