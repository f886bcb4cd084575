package syncsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-trip-core/config"
	"github.com/golang-trip-core/internal/adapter"
	"github.com/golang-trip-core/internal/codec"
	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"github.com/golang-trip-core/internal/resource"
	"github.com/golang-trip-core/internal/service"
	"go.uber.org/zap"
)

// 每次推送覆盖未来多少天的价格库存
const pushHorizonDays = 30

// Pusher 价格/库存渠道推送服务
// 渠道凭证来自应用配置；未配置的渠道静默跳过。
type Pusher struct {
	ctrip   *adapter.CtripAdapter
	meituan *adapter.MeituanAdapter
}

// NewPusher 按应用配置构造推送服务
func NewPusher() *Pusher {
	p := &Pusher{}
	cfg := config.GetConfig()
	if cfg == nil {
		return p
	}

	if c := cfg.Ota.Ctrip; c.AccountID != "" {
		p.ctrip = adapter.NewCtripAdapter(&codec.CtripCodec{
			AccountID: c.AccountID,
			Version:   c.Version,
			Key:       []byte(c.AesKey),
			IV:        []byte(c.AesIV),
			SecretKey: c.SecretKey,
		}, c.BaseURL)
	}

	if m := cfg.Ota.Meituan; m.PartnerID != "" {
		mc, err := codec.NewMeituanCodec(m.PartnerID, m.AppKey, m.Secret, m.BodyKey)
		if err != nil {
			logger.Logger.Error("美团渠道配置无效", zap.Error(err))
		} else {
			p.meituan = adapter.NewMeituanAdapter(mc, m.BaseURL)
		}
	}
	return p
}

// SyncProduct 推送单个产品的价格与库存到已映射的渠道
// 价格和库存按配置各自闸门：哪个方向是推送就推哪个；内容无变化时不外呼。
func (p *Pusher) SyncProduct(ctx context.Context, productID int64) error {
	var product models.Product
	if err := database.DB.First(&product, productID).Error; err != nil {
		return fmt.Errorf("查询产品 %d 失败: %w", productID, err)
	}
	if !product.Enabled {
		return nil
	}

	route := resource.ResolveSpot(ctx, product.ScenicSpotID, resource.OpSync)
	if route == nil {
		return nil
	}
	pushPrice := route.Config.PriceMode == models.SyncModePush
	pushStock := route.Config.InventoryMode == models.SyncModePush

	rates, err := p.loadRates(productID)
	if err != nil {
		return err
	}
	if len(rates) == 0 {
		return nil
	}

	var mappings []models.ProductMapping
	err = database.DB.
		Where("product_id = ? AND target IN ?", productID,
			[]string{models.TargetCtrip, models.TargetMeituan}).
		Find(&mappings).Error
	if err != nil {
		return err
	}

	for _, mapping := range mappings {
		switch mapping.Target {
		case models.TargetCtrip:
			p.pushCtrip(ctx, &product, mapping.ExternalID, rates, pushPrice, pushStock)
		case models.TargetMeituan:
			p.pushMeituan(ctx, &product, mapping.ExternalID, rates, pushPrice)
		}
	}
	return nil
}

// loadRates 取今天起 pushHorizonDays 天内的价格库存
func (p *Pusher) loadRates(productID int64) ([]models.DailyRate, error) {
	today := time.Now().Format("2006-01-02")
	end := time.Now().AddDate(0, 0, pushHorizonDays).Format("2006-01-02")

	var rates []models.DailyRate
	err := database.DB.
		Where("product_id = ? AND date >= ? AND date < ?", productID, today, end).
		Order("date").
		Find(&rates).Error
	return rates, err
}

// pushCtrip 价格走 DatePriceModify，库存走 DateInventoryModify，按各自闸门外呼
func (p *Pusher) pushCtrip(ctx context.Context, product *models.Product, supplierOptionID string,
	rates []models.DailyRate, pushPrice, pushStock bool) {
	if p.ctrip == nil {
		return
	}

	prices := make([]map[string]interface{}, 0, len(rates))
	inventories := make([]map[string]interface{}, 0, len(rates))
	for i := range rates {
		prices = append(prices, map[string]interface{}{
			"date":  rates[i].Date,
			"price": rates[i].PriceFen(),
		})
		inventories = append(inventories, map[string]interface{}{
			"date":     rates[i].Date,
			"quantity": rates[i].Stock,
		})
	}

	// 流水号在指纹计算之后才注入，否则每轮都会判定为有变化
	if pushPrice {
		pricePayload := map[string]interface{}{"supplierOptionId": supplierOptionID, "prices": prices}
		p.pushOne(ctx, product, models.OtaCtrip, KindPrice, pricePayload,
			func(interface{}) adapter.Result {
				pricePayload["sequenceId"] = adapter.NewSequenceID()
				return p.ctrip.Send(ctx, "DatePriceModify", pricePayload)
			})
	}

	if pushStock {
		stockPayload := map[string]interface{}{"supplierOptionId": supplierOptionID, "inventories": inventories}
		p.pushOne(ctx, product, models.OtaCtrip, KindStock, stockPayload,
			func(interface{}) adapter.Result {
				stockPayload["sequenceId"] = adapter.NewSequenceID()
				return p.ctrip.Send(ctx, "DateInventoryModify", stockPayload)
			})
	}
}

// pushMeituan 美团只有价格通知
func (p *Pusher) pushMeituan(ctx context.Context, product *models.Product, dealID string,
	rates []models.DailyRate, pushPrice bool) {
	if p.meituan == nil || !pushPrice {
		return
	}

	prices := make([]map[string]interface{}, 0, len(rates))
	for i := range rates {
		prices = append(prices, map[string]interface{}{
			"date":  rates[i].Date,
			"price": rates[i].PriceFen(),
		})
	}

	p.pushOne(ctx, product, models.OtaMeituan, KindPrice,
		map[string]interface{}{"partnerDealId": dealID, "prices": prices},
		func(payload interface{}) adapter.Result {
			return p.meituan.Send(ctx, "level/price/notice/v2", payload)
		})
}

// pushOne 变化检测 → 外呼 → 回写指纹
func (p *Pusher) pushOne(ctx context.Context, product *models.Product, otaPlatform int, kind string,
	payload interface{}, send func(interface{}) adapter.Result) {

	key := Key{
		ProductID:   product.ID,
		HotelID:     derefID(product.HotelID),
		RoomTypeID:  derefID(product.RoomTypeID),
		OtaPlatform: otaPlatform,
		Kind:        kind,
	}

	changed, hash, err := ShouldPush(ctx, key, payload)
	if err != nil {
		logger.Logger.Warn("变化检测失败",
			zap.Int64("product_id", product.ID), zap.String("kind", kind), zap.Error(err))
		return
	}
	if !changed {
		return
	}

	res := send(payload)
	observePush(otaPlatform, kind, res.Success)
	if !res.Success {
		exType := models.ExceptionTypePriceMismatch
		if kind == KindStock {
			exType = models.ExceptionTypeInventoryMismatch
		}
		service.EscalateSyncException(exType,
			fmt.Sprintf("产品 %d %s 推送失败", product.ID, kind),
			fmt.Sprintf("渠道=%d code=%s message=%s", otaPlatform, res.Code, res.Message))
		return
	}

	if err := RecordPush(ctx, key, hash); err != nil {
		logger.Logger.Warn("指纹回写失败",
			zap.Int64("product_id", product.ID), zap.String("kind", kind), zap.Error(err))
	}
}

func derefID(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
