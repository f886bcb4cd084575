package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-trip-core/config"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 连接
// Redis 承担配置缓存、同步指纹快路径和轮询/调度的分布式锁，
// 连不上不算致命，调用方降级为直查库、单实例执行。
func InitRedis() error {
	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Cfg.Redis.GetAddr(),
		Password:     config.Cfg.Redis.Password,
		DB:           config.Cfg.Redis.DB,
		PoolSize:     config.Cfg.Redis.PoolSize,
		MinIdleConns: config.Cfg.Redis.MinIdleConns,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("连接 Redis 失败: %w", err)
	}

	RDB = rdb
	return nil
}

// CloseRedis 关闭 Redis 连接
func CloseRedis() error {
	if RDB != nil {
		return RDB.Close()
	}
	return nil
}
