package syncsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 推送内容类型
const (
	KindPrice = "price"
	KindStock = "stock"
)

// Key 同步指纹维度：产品×酒店×房型×渠道×内容类型
type Key struct {
	ProductID   int64
	HotelID     int64
	RoomTypeID  int64
	OtaPlatform int
	Kind        string
}

// redis 快路径键，TTL 与定时任务周期同量级
const fingerprintTTL = 24 * time.Hour

func (k Key) redisKey() string {
	return fmt.Sprintf("trip:sync:fp:%d:%d:%d:%d:%s",
		k.ProductID, k.HotelID, k.RoomTypeID, k.OtaPlatform, k.Kind)
}

// PayloadHash 负载内容指纹
// 先归一化成键有序的 JSON 再取 SHA-256，字段顺序不影响指纹。
func PayloadHash(payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	// 经 interface{} 再序列化一次，map 键即按字典序输出
	var normalized interface{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ShouldPush 判断该组合的内容相对上次推送是否有变化
// redis 快路径未命中时回查指纹表；内容未变返回 false。
// 返回的 hash 供推送成功后 RecordPush 使用。
func ShouldPush(ctx context.Context, key Key, payload interface{}) (bool, string, error) {
	hash, err := PayloadHash(payload)
	if err != nil {
		return false, "", err
	}

	if database.RDB != nil {
		cached, err := database.RDB.Get(ctx, key.redisKey()).Result()
		if err == nil {
			return cached != hash, hash, nil
		}
	}

	var fp models.SyncFingerprint
	err = database.DB.
		Where("product_id = ? AND hotel_id = ? AND room_type_id = ? AND ota_platform = ?",
			key.ProductID, key.HotelID, key.RoomTypeID, key.OtaPlatform).
		First(&fp).Error
	if err == gorm.ErrRecordNotFound {
		return true, hash, nil
	}
	if err != nil {
		return false, "", err
	}

	last := fp.LastPriceHash
	if key.Kind == KindStock {
		last = fp.LastStockHash
	}
	return last != hash, hash, nil
}

// RecordPush 推送成功后回写指纹
// 读后写、不开事务：并发窗口下最坏结果是一次重复推送，可接受。
func RecordPush(ctx context.Context, key Key, hash string) error {
	now := time.Now()
	fp := models.SyncFingerprint{
		ProductID:   key.ProductID,
		HotelID:     key.HotelID,
		RoomTypeID:  key.RoomTypeID,
		OtaPlatform: key.OtaPlatform,
	}
	updates := map[string]interface{}{}
	if key.Kind == KindStock {
		fp.LastStockHash = hash
		fp.StockPushedAt = &now
		updates["last_stock_hash"] = hash
		updates["stock_pushed_at"] = &now
	} else {
		fp.LastPriceHash = hash
		fp.PricePushedAt = &now
		updates["last_price_hash"] = hash
		updates["price_pushed_at"] = &now
	}

	err := database.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "product_id"}, {Name: "hotel_id"},
			{Name: "room_type_id"}, {Name: "ota_platform"},
		},
		DoUpdates: clause.Assignments(updates),
	}).Create(&fp).Error
	if err != nil {
		return err
	}

	if database.RDB != nil {
		if err := database.RDB.Set(ctx, key.redisKey(), hash, fingerprintTTL).Err(); err != nil {
			logger.Logger.Warn("指纹写缓存失败",
				zap.String("key", key.redisKey()), zap.Error(err))
		}
	}
	return nil
}
