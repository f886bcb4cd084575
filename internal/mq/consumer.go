package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	rocketmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"
	"github.com/golang-trip-core/config"
	"github.com/golang-trip-core/internal/logger"
	"go.uber.org/zap"
)

// Handler 主题消息处理函数，body 为消息原文
type Handler func(ctx context.Context, body []byte) error

var (
	handlerMu sync.RWMutex
	handlers  = make(map[string]Handler)
)

// RegisterHandler 注册主题处理函数
// 业务包在启动期注册，mq 包不反向依赖业务包。
func RegisterHandler(topic string, h Handler) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	handlers[topic] = h
}

func handlerFor(topic string) Handler {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	return handlers[topic]
}

// RocketMQConsumer 消费者封装
type RocketMQConsumer struct {
	consumer rocketmq.PushConsumer
	enabled  bool
}

// NewRocketMQConsumer 创建并启动消费者
func NewRocketMQConsumer() (*RocketMQConsumer, error) {
	cfg := config.GetConfig()
	applyRocketMQLogLevel()

	if cfg == nil || !cfg.RocketMQ.Enabled {
		logger.Logger.Info("RocketMQ 未启用，消费者不会启动")
		return &RocketMQConsumer{enabled: false}, nil
	}

	endpoint := fmt.Sprintf("%s:%d", cfg.RocketMQ.Endpoint, cfg.RocketMQ.Port)
	creds := &credentials.SessionCredentials{
		AccessKey:    cfg.RocketMQ.AccessKey,
		AccessSecret: cfg.RocketMQ.AccessSecret,
	}
	consumerConfig := &rocketmq.Config{
		Endpoint:      endpoint,
		ConsumerGroup: cfg.RocketMQ.ConsumerGroup,
		Credentials:   creds,
	}

	listener := &rocketmq.FuncMessageListener{
		Consume: func(message *rocketmq.MessageView) rocketmq.ConsumerResult {
			ctx := context.Background()
			topic := message.GetTopic()

			h := handlerFor(topic)
			if h == nil {
				logger.Logger.Warn("未注册处理函数的主题",
					zap.String("topic", topic),
					zap.String("message_id", message.GetMessageId()))
				return rocketmq.SUCCESS
			}

			if err := h(ctx, message.GetBody()); err != nil {
				logger.Logger.Error("处理消息失败",
					zap.String("topic", topic),
					zap.String("message_id", message.GetMessageId()),
					zap.Error(err))
				// 业务失败由异常单兜底，不依赖消息重投
				return rocketmq.SUCCESS
			}
			return rocketmq.SUCCESS
		},
	}

	subscriptions := make(map[string]*rocketmq.FilterExpression, len(cfg.RocketMQ.Topics))
	for _, topic := range cfg.RocketMQ.Topics {
		subscriptions[topic] = rocketmq.SUB_ALL
	}

	var consumer rocketmq.PushConsumer
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("创建 RocketMQ 消费者时发生 panic: %v", r)
			}
		}()
		consumer, err = rocketmq.NewPushConsumer(consumerConfig,
			rocketmq.WithPushSubscriptionExpressions(subscriptions),
			rocketmq.WithPushMessageListener(listener),
		)
	}()
	if err != nil {
		logger.Logger.Warn("创建 RocketMQ 消费者失败，将使用同步处理",
			zap.String("endpoint", endpoint), zap.Error(err))
		return &RocketMQConsumer{enabled: false}, nil
	}

	if startErr := startWithTimeout(consumer.Start, 10*time.Second); startErr != nil {
		logger.Logger.Warn("启动 RocketMQ 消费者失败，将使用同步处理",
			zap.String("endpoint", endpoint),
			zap.Strings("topics", cfg.RocketMQ.Topics),
			zap.Error(startErr))
		_ = consumer.GracefulStop()
		return &RocketMQConsumer{enabled: false}, nil
	}

	logger.Logger.Info("RocketMQ 消费者启动成功",
		zap.String("endpoint", endpoint),
		zap.String("consumer_group", cfg.RocketMQ.ConsumerGroup))
	return &RocketMQConsumer{consumer: consumer, enabled: true}, nil
}

// Close 关闭消费者，最多等 5s
func (c *RocketMQConsumer) Close() error {
	if !c.enabled || c.consumer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.consumer.GracefulStop()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Logger.Error("关闭 RocketMQ 消费者失败", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		logger.Logger.Warn("关闭 RocketMQ 消费者超时，强制退出")
		return nil
	}

	logger.Logger.Info("RocketMQ 消费者已关闭")
	return nil
}

// IsEnabled 检查是否启用
func (c *RocketMQConsumer) IsEnabled() bool {
	return c.enabled
}
