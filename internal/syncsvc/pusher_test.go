package syncsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-trip-core/internal/adapter"
	"github.com/golang-trip-core/internal/codec"
	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var pusherTestCodec = &codec.CtripCodec{
	AccountID: "ACC001",
	Version:   "1.0",
	Key:       []byte("0123456789abcdef"),
	IV:        []byte("fedcba9876543210"),
	SecretKey: "secret-key",
}

func newTestPusher(baseURL string) *Pusher {
	return &Pusher{ctrip: adapter.NewCtripAdapter(pusherTestCodec, baseURL)}
}

// seedSyncProduct 建景区+配置+产品+携程映射+明日价格库存，返回产品 ID
func seedSyncProduct(t *testing.T, code, priceMode, inventoryMode string) int64 {
	t.Helper()

	spot := &models.ScenicSpot{Name: "景区" + code, Code: code, ApiType: models.ApiTypeZiwoyou}
	assert.NoError(t, database.DB.Create(spot).Error)

	cfg := &models.ResourceConfig{
		ScenicSpotID:  spot.ID,
		Provider:      models.ApiTypeZiwoyou,
		ApiURL:        "http://unused",
		AuthKind:      models.AuthKindCustom,
		AuthParams:    `{"custom":{"cust_id":"C1","api_key":"k"}}`,
		OrderMode:     models.OrderModeManual,
		PriceMode:     priceMode,
		InventoryMode: inventoryMode,
		Enabled:       true,
	}
	assert.NoError(t, database.DB.Create(cfg).Error)

	product := &models.Product{ScenicSpotID: spot.ID, Name: "产品" + code, Enabled: true}
	assert.NoError(t, database.DB.Create(product).Error)
	mapping := &models.ProductMapping{
		ProductID: product.ID, Target: models.TargetCtrip, ExternalID: "CT-" + code,
	}
	assert.NoError(t, database.DB.Create(mapping).Error)

	rate := &models.DailyRate{
		ProductID: product.ID,
		Date:      time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
		Price:     decimal.NewFromInt(198),
		Stock:     10,
	}
	assert.NoError(t, database.DB.Create(rate).Error)
	return product.ID
}

// newCtripCaptureServer 还原每次外呼的接口名与明文报文
func newCtripCaptureServer(t *testing.T, services *[]string, plains *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var envelope struct {
			Header struct {
				ServiceName string `json:"serviceName"`
			} `json:"header"`
			Body string `json:"body"`
		}
		assert.NoError(t, json.Unmarshal(raw, &envelope))
		plain, err := pusherTestCodec.Decrypt(envelope.Body)
		assert.NoError(t, err)

		*services = append(*services, envelope.Header.ServiceName)
		*plains = append(*plains, plain)
		w.Write([]byte(`{"header":{"resultCode":"0000"}}`))
	}))
}

// TestSyncProduct_PriceModeManualOnlyPushesStock 价格方式为人工时只推库存
func TestSyncProduct_PriceModeManualOnlyPushesStock(t *testing.T) {
	var services, plains []string
	server := newCtripCaptureServer(t, &services, &plains)
	defer server.Close()

	productID := seedSyncProduct(t, "SY-1", models.SyncModeManual, models.SyncModePush)
	assert.NoError(t, newTestPusher(server.URL).SyncProduct(context.Background(), productID))

	assert.Equal(t, []string{"DateInventoryModify"}, services)
	assert.Contains(t, plains[0], `"quantity":10`)
	// 每次外呼都带流水号
	assert.Contains(t, plains[0], `"sequenceId"`)
}

// TestSyncProduct_InventoryModeManualOnlyPushesPrice 库存方式为人工时只推价格
func TestSyncProduct_InventoryModeManualOnlyPushesPrice(t *testing.T) {
	var services, plains []string
	server := newCtripCaptureServer(t, &services, &plains)
	defer server.Close()

	productID := seedSyncProduct(t, "SY-2", models.SyncModePush, models.SyncModeManual)
	assert.NoError(t, newTestPusher(server.URL).SyncProduct(context.Background(), productID))

	assert.Equal(t, []string{"DatePriceModify"}, services)
	assert.Contains(t, plains[0], fmt.Sprintf(`"price":%d`, int64(19800)))
}

// TestSyncProduct_BothModesManualNoCalls 两个方向都是人工则零外呼
func TestSyncProduct_BothModesManualNoCalls(t *testing.T) {
	var services, plains []string
	server := newCtripCaptureServer(t, &services, &plains)
	defer server.Close()

	productID := seedSyncProduct(t, "SY-3", models.SyncModeManual, models.SyncModeManual)
	assert.NoError(t, newTestPusher(server.URL).SyncProduct(context.Background(), productID))
	assert.Empty(t, services)
}

// TestSyncProduct_UnchangedSecondCycleSkips 流水号不参与指纹，内容未变第二轮不外呼
func TestSyncProduct_UnchangedSecondCycleSkips(t *testing.T) {
	var services, plains []string
	server := newCtripCaptureServer(t, &services, &plains)
	defer server.Close()

	productID := seedSyncProduct(t, "SY-4", models.SyncModePush, models.SyncModePush)
	pusher := newTestPusher(server.URL)

	assert.NoError(t, pusher.SyncProduct(context.Background(), productID))
	assert.Len(t, services, 2)

	assert.NoError(t, pusher.SyncProduct(context.Background(), productID))
	assert.Len(t, services, 2)
}
