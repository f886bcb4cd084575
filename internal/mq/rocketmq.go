package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	rocketmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"
	"github.com/golang-trip-core/config"
	"github.com/golang-trip-core/internal/logger"
	"go.uber.org/zap"
)

func init() {
	// SDK 日志走控制台，级别可被配置覆盖
	os.Setenv("mq.consoleAppender.enabled", "true")
	if os.Getenv("rocketmq.client.logLevel") == "" {
		os.Setenv("rocketmq.client.logLevel", "WARN")
	}
	rocketmq.ResetLogger()
}

// applyRocketMQLogLevel 按配置调整 SDK 日志级别
func applyRocketMQLogLevel() {
	cfg := config.GetConfig()
	if cfg != nil && cfg.RocketMQ.LogLevel != "" &&
		os.Getenv("rocketmq.client.logLevel") != cfg.RocketMQ.LogLevel {
		os.Setenv("rocketmq.client.logLevel", cfg.RocketMQ.LogLevel)
		rocketmq.ResetLogger()
	}
}

var (
	globalMQClient     *RocketMQClient
	globalMQClientInit sync.Once
)

// RocketMQClient 生产者封装
// RocketMQ 未启用或启动失败时 enabled=false，调用方退化为本地同步处理。
type RocketMQClient struct {
	producer rocketmq.Producer
	enabled  bool
}

// GetGlobalMQClient 获取全局生产者单例
func GetGlobalMQClient() *RocketMQClient {
	globalMQClientInit.Do(func() {
		client, err := NewRocketMQClient()
		if err != nil {
			if logger.Logger != nil {
				logger.Logger.Warn("初始化全局 RocketMQ 客户端失败", zap.Error(err))
			}
			globalMQClient = &RocketMQClient{enabled: false}
		} else {
			globalMQClient = client
		}
	})
	return globalMQClient
}

// NewRocketMQClient 创建生产者
func NewRocketMQClient() (*RocketMQClient, error) {
	cfg := config.GetConfig()
	applyRocketMQLogLevel()

	if cfg == nil || !cfg.RocketMQ.Enabled {
		if logger.Logger != nil {
			logger.Logger.Info("RocketMQ 未启用，将使用同步处理")
		}
		return &RocketMQClient{enabled: false}, nil
	}

	endpoint := fmt.Sprintf("%s:%d", cfg.RocketMQ.Endpoint, cfg.RocketMQ.Port)

	// SDK 要求 Credentials 不能为 nil
	creds := &credentials.SessionCredentials{
		AccessKey:    cfg.RocketMQ.AccessKey,
		AccessSecret: cfg.RocketMQ.AccessSecret,
	}

	producerConfig := &rocketmq.Config{
		Endpoint:    endpoint,
		Credentials: creds,
	}

	var opts []rocketmq.ProducerOption
	for _, topic := range cfg.RocketMQ.Topics {
		opts = append(opts, rocketmq.WithTopics(topic))
	}

	var producer rocketmq.Producer
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("创建 RocketMQ 生产者时发生 panic: %v", r)
			}
		}()
		producer, err = rocketmq.NewProducer(producerConfig, opts...)
	}()
	if err != nil {
		logger.Logger.Warn("创建 RocketMQ 生产者失败，将使用同步处理",
			zap.String("endpoint", endpoint), zap.Error(err))
		return &RocketMQClient{enabled: false}, nil
	}

	if startErr := startWithTimeout(producer.Start, 10*time.Second); startErr != nil {
		logger.Logger.Warn("启动 RocketMQ 生产者失败，将使用同步处理",
			zap.String("endpoint", endpoint),
			zap.Strings("topics", cfg.RocketMQ.Topics),
			zap.Error(startErr))
		_ = producer.GracefulStop()
		return &RocketMQClient{enabled: false}, nil
	}

	logger.Logger.Info("RocketMQ 生产者启动成功",
		zap.String("endpoint", endpoint),
		zap.Strings("topics", cfg.RocketMQ.Topics))
	return &RocketMQClient{producer: producer, enabled: true}, nil
}

// startWithTimeout 带超时的启动，SDK 偶发阻塞不能拖垮进程
func startWithTimeout(start func() error, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("启动时发生 panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- start()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("启动超时（%s）: %w", timeout, ctx.Err())
	}
}

// SendMessage 发送消息
func (c *RocketMQClient) SendMessage(ctx context.Context, topic, tag string, body interface{}) error {
	if !c.enabled {
		return fmt.Errorf("RocketMQ 未启用")
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	message := &rocketmq.Message{
		Topic: topic,
		Body:  bodyBytes,
	}
	if tag != "" {
		message.SetTag(tag)
	}

	if _, err = c.producer.Send(ctx, message); err != nil {
		return fmt.Errorf("发送消息失败: %w", err)
	}
	return nil
}

// SendDelayMessage 发送延迟消息
func (c *RocketMQClient) SendDelayMessage(ctx context.Context, topic, tag string, body interface{}, delay time.Duration) error {
	if !c.enabled {
		return fmt.Errorf("RocketMQ 未启用")
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	message := &rocketmq.Message{
		Topic: topic,
		Body:  bodyBytes,
	}
	if tag != "" {
		message.SetTag(tag)
	}
	message.SetDelayTimestamp(time.Now().Add(delay))

	if _, err = c.producer.Send(ctx, message); err != nil {
		return fmt.Errorf("发送延迟消息失败: %w", err)
	}
	return nil
}

// Enqueue 投递消息，队列不可用时退化为本地 goroutine 处理
func Enqueue(ctx context.Context, topic, tag string, body interface{}, fallback func()) {
	client := GetGlobalMQClient()
	if client.IsEnabled() {
		if err := client.SendMessage(ctx, topic, tag, body); err == nil {
			return
		} else {
			logger.Logger.Warn("消息投递失败，退化为本地处理",
				zap.String("topic", topic), zap.String("tag", tag), zap.Error(err))
		}
	}
	go fallback()
}

// EnqueueDelayed 投递延迟消息，队列不可用时退化为本地定时器
func EnqueueDelayed(ctx context.Context, topic, tag string, body interface{}, delay time.Duration, fallback func()) {
	client := GetGlobalMQClient()
	if client.IsEnabled() {
		if err := client.SendDelayMessage(ctx, topic, tag, body, delay); err == nil {
			return
		} else {
			logger.Logger.Warn("延迟消息投递失败，退化为本地处理",
				zap.String("topic", topic), zap.String("tag", tag), zap.Error(err))
		}
	}
	go func() {
		time.Sleep(delay)
		fallback()
	}()
}

// Close 关闭生产者，最多等 5s
func (c *RocketMQClient) Close() error {
	if !c.enabled || c.producer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.producer.GracefulStop()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Logger.Error("关闭 RocketMQ 生产者失败", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		logger.Logger.Warn("关闭 RocketMQ 生产者超时，强制退出")
		return nil
	}

	logger.Logger.Info("RocketMQ 生产者已关闭")
	return nil
}

// IsEnabled 检查是否启用
func (c *RocketMQClient) IsEnabled() bool {
	return c.enabled
}
