package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"go.uber.org/zap"
)

// 配置类数据读多写少，redis 缓存 10 分钟，redis 不可用时直接回源
const configCacheTTL = 10 * time.Minute

const (
	scenicSpotKeyFmt     = "trip:cache:spot:%d"
	scenicSpotCodeKeyFmt = "trip:cache:spot_code:%s"
	resourceConfigKeyFmt = "trip:cache:rescfg:%d:%s"
)

// GetScenicSpot 按 ID 查景区，带缓存
func GetScenicSpot(ctx context.Context, id int64) (*models.ScenicSpot, error) {
	key := fmt.Sprintf(scenicSpotKeyFmt, id)
	var spot models.ScenicSpot
	if cacheGet(ctx, key, &spot) {
		return &spot, nil
	}
	if err := database.DB.First(&spot, id).Error; err != nil {
		return nil, err
	}
	cacheSet(ctx, key, &spot)
	return &spot, nil
}

// GetScenicSpotByCode 按编码查景区，带缓存
func GetScenicSpotByCode(ctx context.Context, code string) (*models.ScenicSpot, error) {
	key := fmt.Sprintf(scenicSpotCodeKeyFmt, code)
	var spot models.ScenicSpot
	if cacheGet(ctx, key, &spot) {
		return &spot, nil
	}
	if err := database.DB.Where("code = ?", code).First(&spot).Error; err != nil {
		return nil, err
	}
	cacheSet(ctx, key, &spot)
	return &spot, nil
}

// GetResourceConfig 查（景区, 软件商）对应的启用中配置，带缓存
func GetResourceConfig(ctx context.Context, scenicSpotID int64, provider string) (*models.ResourceConfig, error) {
	key := fmt.Sprintf(resourceConfigKeyFmt, scenicSpotID, provider)
	var cfg models.ResourceConfig
	if cacheGet(ctx, key, &cfg) {
		return &cfg, nil
	}
	err := database.DB.
		Where("scenic_spot_id = ? AND provider = ? AND enabled = ?", scenicSpotID, provider, true).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	cacheSet(ctx, key, &cfg)
	return &cfg, nil
}

// ListEnabledConfigs 列出某软件商的全部启用配置（回调识别用），不缓存
func ListEnabledConfigs(ctx context.Context, provider string) ([]models.ResourceConfig, error) {
	var configs []models.ResourceConfig
	err := database.DB.
		Where("provider = ? AND enabled = ?", provider, true).
		Find(&configs).Error
	return configs, err
}

// InvalidateResourceConfig 配置变更后主动失效缓存
func InvalidateResourceConfig(ctx context.Context, scenicSpotID int64, provider string) {
	if database.RDB == nil {
		return
	}
	key := fmt.Sprintf(resourceConfigKeyFmt, scenicSpotID, provider)
	if err := database.RDB.Del(ctx, key).Err(); err != nil {
		logger.Logger.Warn("缓存失效失败", zap.String("key", key), zap.Error(err))
	}
}

// cacheGet 读缓存；redis 不可用或反序列化失败一律当未命中
func cacheGet(ctx context.Context, key string, out interface{}) bool {
	if database.RDB == nil {
		return false
	}
	data, err := database.RDB.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		logger.Logger.Warn("缓存内容损坏", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// cacheSet 写缓存，失败只记日志
func cacheSet(ctx context.Context, key string, v interface{}) {
	if database.RDB == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := database.RDB.Set(ctx, key, data, configCacheTTL).Err(); err != nil {
		logger.Logger.Warn("写缓存失败", zap.String("key", key), zap.Error(err))
	}
}
