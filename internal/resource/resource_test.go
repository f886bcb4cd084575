package resource

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-trip-core/internal/adapter"
	"github.com/golang-trip-core/internal/codec"
	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.Logger = zap.NewNop()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		panic(err)
	}
	if err := db.AutoMigrate(
		&models.ScenicSpot{}, &models.Hotel{}, &models.RoomType{},
		&models.Product{}, &models.ProductMapping{},
		&models.ResourceConfig{}, &models.Order{},
		&models.ExceptionRecord{}, &models.ApiLog{},
	); err != nil {
		panic(err)
	}
	database.DB = db

	// 测试里不等真实的重试间隔
	retryPause = time.Millisecond

	os.Exit(m.Run())
}

func newZiwoyouTestService(baseURL string) *ZiwoyouService {
	return &ZiwoyouService{
		adapter: adapter.NewZiwoyouAdapter(
			&codec.ZiwoyouCodec{CustID: "C1", APIKey: "k"}, baseURL),
	}
}

// TestConfirmOrder_Idempotent 资源方单号已写入时零外呼直接成功
func TestConfirmOrder_Idempotent(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"state":0}`))
	}))
	defer server.Close()

	order := &models.Order{OrderNo: "T1001", ResourceOrderNo: "ZW-EXIST"}
	res := newZiwoyouTestService(server.URL).ConfirmOrder(context.Background(), order)

	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "ZW-EXIST")
	assert.Equal(t, 0, calls)
}

// TestCallWithRetry_TransientBound 瞬时故障恰好重试到第 3 次为止
func TestCallWithRetry_TransientBound(t *testing.T) {
	calls := 0
	res := callWithRetry(context.Background(), func() adapter.Result {
		calls++
		return adapter.Fail(adapter.CodeTimeout, "read timeout")
	})
	assert.False(t, res.Success)
	assert.Equal(t, 3, calls)
}

// TestCallWithRetry_BusinessNoRetry 业务失败一次都不重试
func TestCallWithRetry_BusinessNoRetry(t *testing.T) {
	calls := 0
	res := callWithRetry(context.Background(), func() adapter.Result {
		calls++
		return adapter.Fail("1001", "库存不足")
	})
	assert.False(t, res.Success)
	assert.Equal(t, 1, calls)
}

// TestCallWithRetry_DecodeNoRetry 解码失败绝不重试
func TestCallWithRetry_DecodeNoRetry(t *testing.T) {
	calls := 0
	callWithRetry(context.Background(), func() adapter.Result {
		calls++
		return adapter.Fail(adapter.CodeDecodeError, "非法密文")
	})
	assert.Equal(t, 1, calls)
}

// TestCallWithRetry_MessageMarker 对端报文带超时关键字也按瞬时故障重试
func TestCallWithRetry_MessageMarker(t *testing.T) {
	calls := 0
	callWithRetry(context.Background(), func() adapter.Result {
		calls++
		return adapter.Fail("9999", "系统处理超时，请稍后重试")
	})
	assert.Equal(t, 3, calls)
}

// TestIsTransient 瞬时故障判定
func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(adapter.Fail(adapter.CodeNetworkError, "")))
	assert.True(t, isTransient(adapter.Fail(adapter.CodeTimeout, "")))
	assert.True(t, isTransient(adapter.Fail("500", "网络异常")))
	assert.True(t, isTransient(adapter.Fail("ERR", "gateway timeout")))
	assert.False(t, isTransient(adapter.Fail(adapter.CodeDecodeError, "网络")))
	assert.False(t, isTransient(adapter.Fail("1001", "库存不足")))
}

// TestZiwoyouService_RetryExhausted 对端持续 5xx 时恰好外呼 3 次后转人工
func TestZiwoyouService_RetryExhausted(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	order := &models.Order{OrderNo: "T1002", ResourceOrderNo: "ZW-1"}
	res := newZiwoyouTestService(server.URL).CancelOrder(context.Background(), order)

	assert.False(t, res.Success)
	assert.True(t, res.NeedManual)
	assert.Equal(t, 3, calls)
}

// TestZiwoyouService_StatusTable orderState 到统一状态词表的映射
func TestZiwoyouService_StatusTable(t *testing.T) {
	cases := []struct {
		orderState int
		want       int
	}{
		{0, models.StatusConfirming},
		{1, models.StatusConfirmed},
		{2, models.StatusConfirmed},
		{3, models.StatusCancelApproved},
		{4, models.StatusVerified},
	}

	for _, c := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"state":0,"data":{"orderState":%d}}`, c.orderState)
		}))
		order := &models.Order{OrderNo: "T1003", ResourceOrderNo: "ZW-2"}
		res := newZiwoyouTestService(server.URL).QueryOrderStatus(context.Background(), order)
		server.Close()

		assert.True(t, res.Success, "orderState=%d", c.orderState)
		assert.Equal(t, c.want, res.Status, "orderState=%d", c.orderState)
	}
}

// TestZiwoyouService_UnknownStatus 未知状态不落统一词表
func TestZiwoyouService_UnknownStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state":0,"data":{"orderState":9}}`))
	}))
	defer server.Close()

	order := &models.Order{OrderNo: "T1004", ResourceOrderNo: "ZW-3"}
	res := newZiwoyouTestService(server.URL).QueryOrderStatus(context.Background(), order)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "未知")
}

// TestZiwoyouService_CancelNeedsCancelState state==0 但 cancelState!=1 视为未生效
func TestZiwoyouService_CancelNeedsCancelState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state":0,"msg":"已受理","data":{"cancelState":2}}`))
	}))
	defer server.Close()

	order := &models.Order{OrderNo: "T1005", ResourceOrderNo: "ZW-4"}
	res := newZiwoyouTestService(server.URL).CancelOrder(context.Background(), order)
	assert.False(t, res.Success)
	assert.True(t, res.NeedManual)

	server2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state":0,"data":{"cancelState":1}}`))
	}))
	defer server2.Close()

	res = newZiwoyouTestService(server2.URL).CancelOrder(context.Background(), order)
	assert.True(t, res.Success)
}

// TestZiwoyouService_ConfirmFlow 校验→下单→支付全链路，单号只写一次
func TestZiwoyouService_ConfirmFlow(t *testing.T) {
	productID := seedProduct(t, "SPOT-A", models.ApiTypeZiwoyou, "ZWP-77")

	order := &models.Order{
		OrderNo:     "T1006",
		OtaPlatform: models.OtaCtrip,
		Status:      models.StatusConfirming,
		CheckInDate: "2025-12-27",
		GuestCount:  2,
		ProductID:   &productID,
	}
	assert.NoError(t, order.SetGuests([]models.Guest{{Name: "张三", CredentialNo: "110101..."}}))
	assert.NoError(t, database.DB.Create(order).Error)

	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/api/thirdPaty/order/check":
			w.Write([]byte(`{"state":0}`))
		case "/api/thirdPaty/order/add":
			w.Write([]byte(`{"state":0,"data":{"orderId":"ZW-NEW-1","settlePrice":"176.00"}}`))
		case "/api/thirdPaty/order/pay":
			w.Write([]byte(`{"state":0}`))
		}
	}))
	defer server.Close()

	svc := newZiwoyouTestService(server.URL)
	res := svc.ConfirmOrder(context.Background(), order)

	assert.True(t, res.Success)
	assert.Equal(t, []string{
		"/api/thirdPaty/order/check",
		"/api/thirdPaty/order/add",
		"/api/thirdPaty/order/pay",
	}, paths)

	var saved models.Order
	assert.NoError(t, database.DB.First(&saved, order.ID).Error)
	assert.Equal(t, "ZW-NEW-1", saved.ResourceOrderNo)
	assert.Equal(t, "176", saved.SettlementAmount.String())

	// 再次确认：幂等短路，不再外呼
	before := len(paths)
	res = svc.ConfirmOrder(context.Background(), &saved)
	assert.True(t, res.Success)
	assert.Len(t, paths, before)
}

// TestFliggyService_CancellableAllowList 仅 1001/1002 可取消
func TestFliggyService_CancellableAllowList(t *testing.T) {
	cases := map[string]bool{
		"1001": true,
		"1002": true,
		"1003": false,
		"1004": false,
	}

	for raw, want := range cases {
		status := raw
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"code":"2000","data":{"orderStatus":"%s"}}`, status)
		}))

		svc := &FliggyDistService{adapter: newFliggyTestAdapter(t, server.URL)}
		order := &models.Order{OrderNo: "T1007", ResourceOrderNo: "FL-1"}
		res := svc.CanCancelOrder(context.Background(), order)
		server.Close()

		assert.Equal(t, want, res.Success, "orderStatus=%s", raw)
	}
}

// TestFliggyService_StatusTable 分销状态码映射
func TestFliggyService_StatusTable(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"1001", models.StatusConfirming},
		{"1002", models.StatusConfirmed},
		{"1003", models.StatusVerified},
		{"1004", models.StatusCancelApproved},
		{"1005", models.StatusClosed},
	}

	for _, c := range cases {
		raw := c.raw
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"code":"2000","data":{"orderStatus":"%s"}}`, raw)
		}))

		svc := &FliggyDistService{adapter: newFliggyTestAdapter(t, server.URL)}
		order := &models.Order{OrderNo: "T1008", ResourceOrderNo: "FL-2"}
		res := svc.QueryOrderStatus(context.Background(), order)
		server.Close()

		assert.True(t, res.Success)
		assert.Equal(t, c.want, res.Status, "orderStatus=%s", c.raw)
	}
}

// TestFliggyService_RefundAfterVerify 已核销订单取消走退款接口
func TestFliggyService_RefundAfterVerify(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"code":"2000"}`))
	}))
	defer server.Close()

	svc := &FliggyDistService{adapter: newFliggyTestAdapter(t, server.URL)}
	order := &models.Order{OrderNo: "T1009", ResourceOrderNo: "FL-3", Status: models.StatusVerified}
	res := svc.CancelOrder(context.Background(), order)

	assert.True(t, res.Success)
	assert.Equal(t, "/refundOrder", path)
}

// TestHengdianService_StatusTable 横店状态映射
func TestHengdianService_StatusTable(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"0", models.StatusConfirming},
		{"1", models.StatusConfirmed},
		{"2", models.StatusVerified},
		{"3", models.StatusCancelApproved},
	}

	for _, c := range cases {
		raw := c.raw
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `<QueryStatusRS><ResultCode>0</ResultCode><OrderStatus>%s</OrderStatus></QueryStatusRS>`, raw)
		}))

		svc := newHengdianTestService(server.URL)
		order := &models.Order{OrderNo: "T1010", ResourceOrderNo: "HD-1", OtaPlatform: models.OtaCtrip}
		res := svc.QueryOrderStatus(context.Background(), order)
		server.Close()

		assert.True(t, res.Success)
		assert.Equal(t, c.want, res.Status, "OrderStatus=%s", c.raw)
	}
}

// TestCancelOrder_RequiresResourceOrderNo 无资源方单号不可取消
func TestCancelOrder_RequiresResourceOrderNo(t *testing.T) {
	order := &models.Order{OrderNo: "T1011"}

	res := newZiwoyouTestService("http://unused").CancelOrder(context.Background(), order)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "资源方订单号缺失")

	res = newHengdianTestService("http://unused").CancelOrder(context.Background(), order)
	assert.False(t, res.Success)
}

// TestRegistry_UnknownProvider 未注册软件商返回 nil
func TestRegistry_UnknownProvider(t *testing.T) {
	svc := New(&models.ResourceConfig{Provider: "nonexistent"})
	assert.Nil(t, svc)
}

// TestRegistry_KnownProviders 三家软件商都已自注册
func TestRegistry_KnownProviders(t *testing.T) {
	for _, apiType := range []string{
		models.ApiTypeHengdian, models.ApiTypeFliggyDist, models.ApiTypeZiwoyou,
	} {
		_, ok := registry[apiType]
		assert.True(t, ok, apiType)
	}
}

// TestResolve_SyncModeGates 同步方式闸门
func TestResolve_SyncModeGates(t *testing.T) {
	spot := &models.ScenicSpot{Name: "测试景区B", Code: "SPOT-B", ApiType: models.ApiTypeZiwoyou}
	assert.NoError(t, database.DB.Create(spot).Error)

	cfg := &models.ResourceConfig{
		ScenicSpotID:  spot.ID,
		Provider:      models.ApiTypeZiwoyou,
		ApiURL:        "http://unused",
		AuthKind:      models.AuthKindCustom,
		AuthParams:    `{"custom":{"cust_id":"C1","api_key":"k"}}`,
		OrderMode:     models.OrderModeManual,
		InventoryMode: models.SyncModeManual,
		PriceMode:     models.SyncModeManual,
		Enabled:       true,
	}
	assert.NoError(t, database.DB.Create(cfg).Error)

	ctx := context.Background()

	// 订单方式为人工、两个同步方向均为人工：路由为空，不是错误
	assert.Nil(t, ResolveSpot(ctx, spot.ID, OpOrder))
	assert.Nil(t, ResolveSpot(ctx, spot.ID, OpSync))

	// 仅价格为推送也要放行，库存方向由调用方按配置自行跳过
	assert.NoError(t, database.DB.Model(cfg).Update("price_mode", models.SyncModePush).Error)
	assert.NotNil(t, ResolveSpot(ctx, spot.ID, OpSync))

	assert.NoError(t, database.DB.Model(cfg).Updates(map[string]interface{}{
		"order_mode":     models.OrderModeAuto,
		"inventory_mode": models.SyncModePush,
	}).Error)

	route := ResolveSpot(ctx, spot.ID, OpOrder)
	assert.NotNil(t, route)
	assert.NotNil(t, route.Service)
	assert.Equal(t, models.ApiTypeZiwoyou, route.Config.Provider)
	assert.NotNil(t, ResolveSpot(ctx, spot.ID, OpSync))
}

// TestResolveSpot_BadConfigInit 配置无法初始化软件商时路由为空，不报错
func TestResolveSpot_BadConfigInit(t *testing.T) {
	spot := &models.ScenicSpot{Name: "测试景区C", Code: "SPOT-C", ApiType: models.ApiTypeZiwoyou}
	assert.NoError(t, database.DB.Create(spot).Error)

	// 缺 cust_id，自我游服务构造失败
	cfg := &models.ResourceConfig{
		ScenicSpotID: spot.ID,
		Provider:     models.ApiTypeZiwoyou,
		ApiURL:       "http://unused",
		AuthKind:     models.AuthKindCustom,
		AuthParams:   `{"custom":{"api_key":"k"}}`,
		OrderMode:    models.OrderModeAuto,
		Enabled:      true,
	}
	assert.NoError(t, database.DB.Create(cfg).Error)

	assert.Nil(t, ResolveSpot(context.Background(), spot.ID, OpOrder))
}

// TestResolve_MissingSpot 订单未关联景区走人工流程
func TestResolve_MissingSpot(t *testing.T) {
	order := &models.Order{OrderNo: "T1012"}
	assert.Nil(t, Resolve(context.Background(), order, OpOrder))
}

// seedProduct 建景区+产品+映射，返回产品 ID
func seedProduct(t *testing.T, spotCode, target, externalID string) int64 {
	t.Helper()
	spot := &models.ScenicSpot{Name: "测试景区", Code: spotCode, ApiType: target}
	assert.NoError(t, database.DB.Create(spot).Error)

	product := &models.Product{ScenicSpotID: spot.ID, Name: "测试产品", Enabled: true}
	assert.NoError(t, database.DB.Create(product).Error)

	mapping := &models.ProductMapping{ProductID: product.ID, Target: target, ExternalID: externalID}
	assert.NoError(t, database.DB.Create(mapping).Error)
	return product.ID
}

func newFliggyTestAdapter(t *testing.T, baseURL string) *adapter.FliggyDistAdapter {
	t.Helper()
	c, err := codec.NewFliggyDistCodec("D1", genResourceTestKey(t))
	assert.NoError(t, err)
	return adapter.NewFliggyDistAdapter(c, baseURL)
}

func newHengdianTestService(baseURL string) *HengdianService {
	return &HengdianService{
		adapter: adapter.NewHengdianAdapter(
			&codec.HengdianCodec{Username: "u", Password: "p"}, baseURL),
	}
}

// 密钥生成较慢，整个包共用一把
var cachedTestKey string

func genResourceTestKey(t *testing.T) string {
	t.Helper()
	if cachedTestKey == "" {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		assert.NoError(t, err)
		der, err := x509.MarshalPKCS8PrivateKey(key)
		assert.NoError(t, err)
		cachedTestKey = base64.StdEncoding.EncodeToString(der)
	}
	return cachedTestKey
}
