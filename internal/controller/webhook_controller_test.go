package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-trip-core/config"
	"github.com/golang-trip-core/internal/codec"
	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"github.com/golang-trip-core/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testEngine *gin.Engine

func TestMain(m *testing.M) {
	logger.Logger = zap.NewNop()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		panic(err)
	}
	if err := db.AutoMigrate(
		&models.ScenicSpot{}, &models.Hotel{}, &models.Product{},
		&models.ProductMapping{}, &models.ResourceConfig{},
		&models.Order{}, &models.ExceptionRecord{}, &models.ApiLog{},
	); err != nil {
		panic(err)
	}
	database.DB = db

	config.Cfg = &config.Config{}
	config.Cfg.App.Mode = gin.TestMode
	config.Cfg.Ota.Ctrip = config.CtripOtaConfig{
		AccountID: "ACC001",
		Version:   "1.0",
		AesKey:    "0123456789abcdef",
		AesIV:     "abcdef0123456789",
		SecretKey: "secret",
	}
	config.Cfg.Ota.Meituan = config.MeituanOtaConfig{
		PartnerID: "10001",
		AppKey:    "mt-app",
		Secret:    "mt-secret",
		BodyKey:   "0123456789abcdef",
	}

	reconciler := reconcile.NewReconciler()
	webhookController := NewWebhookController(reconciler)
	otaController := NewOtaController(reconciler)

	testEngine = gin.New()
	callback := testEngine.Group("/api/callback")
	callback.POST("/ziwoyou", webhookController.ZiwoyouCallback)
	callback.POST("/ziwoyou/:spot_code", webhookController.ZiwoyouCallback)
	callback.POST("/hengdian/:spot_code", webhookController.HengdianCallback)
	callback.POST("/fliggy_dist", webhookController.FliggyCallback)
	testEngine.POST("/api/ota/ctrip/order", otaController.CtripNotify)
	testEngine.POST("/api/ota/meituan/order/:notice/notice", otaController.MeituanNotify)

	os.Exit(m.Run())
}

// seedResolvableOrder 建 景区+自动配置+产品+订单，可被指定软件商的回调识别
func seedResolvableOrder(t *testing.T, code, provider, resourceOrderNo string, status int) *models.Order {
	t.Helper()

	spot := &models.ScenicSpot{Name: "景区" + code, Code: code, ApiType: provider}
	assert.NoError(t, database.DB.Create(spot).Error)
	cfg := &models.ResourceConfig{
		ScenicSpotID: spot.ID,
		Provider:     provider,
		ApiURL:       "http://127.0.0.1:1",
		AuthKind:     models.AuthKindCustom,
		AuthParams:   `{"custom":{"cust_id":"C1","api_key":"k"}}`,
		OrderMode:    models.OrderModeAuto,
		Enabled:      true,
	}
	assert.NoError(t, database.DB.Create(cfg).Error)
	product := &models.Product{ScenicSpotID: spot.ID, Name: "产品" + code, Enabled: true}
	assert.NoError(t, database.DB.Create(product).Error)

	order := &models.Order{
		OrderNo:         "WH-" + code,
		OtaPlatform:     models.OtaCtrip,
		ResourceOrderNo: resourceOrderNo,
		Status:          status,
		ProductID:       &product.ID,
	}
	assert.NoError(t, database.DB.Create(order).Error)
	return order
}

// doJSON 发 JSON 请求
func doJSON(path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	testEngine.ServeHTTP(w, req)
	return w
}

// orderStatus 查订单当前状态
func orderStatus(t *testing.T, orderID int64) int {
	t.Helper()
	var order models.Order
	assert.NoError(t, database.DB.First(&order, orderID).Error)
	return order.Status
}

// TestZiwoyouCallback_VerifiedEvent 核销回调应答 state 0 并驱动状态迁移
func TestZiwoyouCallback_VerifiedEvent(t *testing.T) {
	order := seedResolvableOrder(t, "W1", models.ApiTypeZiwoyou, "ZW-W1", models.StatusConfirmed)

	state := 4
	w := doJSON("/api/callback/ziwoyou", gin.H{
		"custId":    "C1",
		"timestamp": time.Now().UnixMilli(),
		"param":     gin.H{"orderId": "ZW-W1", "orderState": state},
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 0, resp["state"])

	assert.Eventually(t, func() bool {
		return orderStatus(t, order.ID) == models.StatusVerified
	}, time.Second, 10*time.Millisecond)
}

// TestZiwoyouCallback_UnknownOwnership 识别失败应答 state 1
func TestZiwoyouCallback_UnknownOwnership(t *testing.T) {
	w := doJSON("/api/callback/ziwoyou", gin.H{
		"custId": "NOBODY",
		"param":  gin.H{"orderId": "NO-SUCH"},
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp["state"])
}

// TestHengdianCallback_XMLAck 横店回调按 XML 应答，URL 景区编码兜底识别
func TestHengdianCallback_XMLAck(t *testing.T) {
	spot := &models.ScenicSpot{Name: "横店景区", Code: "HD-W1", ApiType: models.ApiTypeHengdian}
	assert.NoError(t, database.DB.Create(spot).Error)
	cfg := &models.ResourceConfig{
		ScenicSpotID: spot.ID,
		Provider:     models.ApiTypeHengdian,
		ApiURL:       "http://127.0.0.1:1",
		AuthKind:     models.AuthKindUsernamePassword,
		AuthParams:   `{"username":"hd","password":"pw"}`,
		OrderMode:    models.OrderModeAuto,
		Enabled:      true,
	}
	assert.NoError(t, database.DB.Create(cfg).Error)

	body := `<?xml version="1.0" encoding="UTF-8"?><RoomStatusNotifyRQ><HotelCode>H100</HotelCode><RoomStatus>close</RoomStatus></RoomStatusNotifyRQ>`
	req := httptest.NewRequest(http.MethodPost, "/api/callback/hengdian/HD-W1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/xml")
	w := httptest.NewRecorder()
	testEngine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, w.Body.String(), "<ResultCode>0</ResultCode>")
}

// TestFliggyCallback_CancelEvent 飞猪取消回调驱动取消生效
func TestFliggyCallback_CancelEvent(t *testing.T) {
	// 飞猪回调归属识别要求库里是飞猪分销的配置
	order := seedResolvableOrder(t, "W2", models.ApiTypeFliggyDist, "FL-W2", models.StatusConfirmed)

	form := url.Values{}
	form.Set("distributorId", "D001")
	form.Set("orderId", "FL-W2")
	form.Set("orderStatus", "1004")
	req := httptest.NewRequest(http.MethodPost, "/api/callback/fliggy_dist", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	testEngine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2000", resp["code"])

	assert.Eventually(t, func() bool {
		return orderStatus(t, order.ID) == models.StatusCancelApproved
	}, time.Second, 10*time.Millisecond)
}

// ctripTestCodec 与控制器同参的编解码器，供测试侧造报文
func ctripTestCodec() *codec.CtripCodec {
	ct := config.Cfg.Ota.Ctrip
	return &codec.CtripCodec{
		AccountID: ct.AccountID,
		Version:   ct.Version,
		Key:       []byte(ct.AesKey),
		IV:        []byte(ct.AesIV),
		SecretKey: ct.SecretKey,
	}
}

// ctripEnvelopeFor 构造合法签名的携程信封
func ctripEnvelopeFor(t *testing.T, serviceName string, payload interface{}) gin.H {
	t.Helper()
	c := ctripTestCodec()
	data, err := json.Marshal(payload)
	assert.NoError(t, err)
	encrypted, err := c.Encrypt(string(data))
	assert.NoError(t, err)
	requestTime := time.Now().Format("2006-01-02 15:04:05")
	return gin.H{
		"header": gin.H{
			"accountId":   c.AccountID,
			"serviceName": serviceName,
			"requestTime": requestTime,
			"version":     c.Version,
			"sign":        c.Sign(serviceName, requestTime, encrypted),
		},
		"body": encrypted,
	}
}

// TestCtripNotify_BadSign 验签失败应答 1001
func TestCtripNotify_BadSign(t *testing.T) {
	env := ctripEnvelopeFor(t, "CreateOrder", gin.H{"otaOrderId": "CT-BAD"})
	header := env["header"].(gin.H)
	header["sign"] = "0000000000000000000000000000dead"

	w := doJSON("/api/ota/ctrip/order", env, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp ctripEnvelope
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1001", resp.Header.ResultCode)
}

// TestCtripNotify_CreateOrder 携程推单落库并加密应答 0000
func TestCtripNotify_CreateOrder(t *testing.T) {
	// 手工模式景区：推单只落库，不触发资源方调用
	spot := &models.ScenicSpot{Name: "携程推单景区", Code: "CT-W1", ApiType: models.ApiTypeZiwoyou}
	assert.NoError(t, database.DB.Create(spot).Error)
	product := &models.Product{ScenicSpotID: spot.ID, Name: "携程产品", Enabled: true}
	assert.NoError(t, database.DB.Create(product).Error)
	mapping := &models.ProductMapping{ProductID: product.ID, Target: models.TargetCtrip, ExternalID: "ITEM-CT-1"}
	assert.NoError(t, database.DB.Create(mapping).Error)

	env := ctripEnvelopeFor(t, "CreateOrder", gin.H{
		"sequenceId":   "20251227aabbccdd",
		"otaOrderId":   "CT-ORDER-1",
		"contactPhone": "13800000000",
		"items": []gin.H{{
			"itemId":       "ITEM-CT-1",
			"useStartDate": "2025-12-27",
			"useEndDate":   "2025-12-28",
			"quantity":     2,
			"passengers":   []gin.H{{"name": "张三", "credentialNo": "110101199001010011", "credentialType": "ID_CARD"}},
		}},
	})

	w := doJSON("/api/ota/ctrip/order", env, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp ctripEnvelope
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "0000", resp.Header.ResultCode)

	// 应答体可用同参解密，且回显 sequenceId
	plain, err := ctripTestCodec().Decrypt(resp.Body)
	assert.NoError(t, err)
	assert.Contains(t, plain, "20251227aabbccdd")

	var order models.Order
	assert.NoError(t, database.DB.
		Where("ota_platform = ? AND ota_order_no = ?", models.OtaCtrip, "CT-ORDER-1").
		First(&order).Error)
	assert.Equal(t, models.StatusConfirming, order.Status)
	assert.Equal(t, "2025-12-27", order.CheckInDate)
	assert.Equal(t, 2, order.GuestCount)
	assert.Len(t, order.Guests(), 1)
	assert.Equal(t, "张三", order.Guests()[0].Name)
}

// TestCtripNotify_CreateOrderIdempotent 同一渠道单号重复推单不重复落库
func TestCtripNotify_CreateOrderIdempotent(t *testing.T) {
	spot := &models.ScenicSpot{Name: "携程幂等景区", Code: "CT-W2", ApiType: models.ApiTypeZiwoyou}
	assert.NoError(t, database.DB.Create(spot).Error)
	product := &models.Product{ScenicSpotID: spot.ID, Name: "携程产品2", Enabled: true}
	assert.NoError(t, database.DB.Create(product).Error)
	mapping := &models.ProductMapping{ProductID: product.ID, Target: models.TargetCtrip, ExternalID: "ITEM-CT-2"}
	assert.NoError(t, database.DB.Create(mapping).Error)

	payload := gin.H{
		"otaOrderId": "CT-ORDER-2",
		"items":      []gin.H{{"itemId": "ITEM-CT-2", "useStartDate": "2025-12-27", "quantity": 1}},
	}
	w1 := doJSON("/api/ota/ctrip/order", ctripEnvelopeFor(t, "CreateOrder", payload), nil)
	w2 := doJSON("/api/ota/ctrip/order", ctripEnvelopeFor(t, "CreateOrder", payload), nil)
	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, http.StatusOK, w2.Code)

	var count int64
	database.DB.Model(&models.Order{}).
		Where("ota_platform = ? AND ota_order_no = ?", models.OtaCtrip, "CT-ORDER-2").
		Count(&count)
	assert.Equal(t, int64(1), count)
}

// TestMeituanNotify_EncryptedConsume 美团密文核销通知
func TestMeituanNotify_EncryptedConsume(t *testing.T) {
	order := seedResolvableOrder(t, "W3", models.ApiTypeZiwoyou, "", models.StatusConfirmed)
	order.OtaPlatform = models.OtaMeituan
	order.OtaOrderNo = "900003"
	assert.NoError(t, database.DB.Save(order).Error)

	mt := config.Cfg.Ota.Meituan
	mc, err := codec.NewMeituanCodec(mt.PartnerID, mt.AppKey, mt.Secret, mt.BodyKey)
	assert.NoError(t, err)
	encrypted, err := mc.EncryptBody(`{"orderId":900003,"quantity":1}`)
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/ota/meituan/order/consume/notice", strings.NewReader(encrypted))
	req.Header.Set("X-Encryption-Status", "1")
	w := httptest.NewRecorder()
	testEngine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 200, resp["code"])

	assert.Eventually(t, func() bool {
		return orderStatus(t, order.ID) == models.StatusVerified
	}, time.Second, 10*time.Millisecond)
}

// TestMeituanNotify_PayCreatesOrder 美团支付通知落单
func TestMeituanNotify_PayCreatesOrder(t *testing.T) {
	spot := &models.ScenicSpot{Name: "美团景区", Code: "MT-W1", ApiType: models.ApiTypeZiwoyou}
	assert.NoError(t, database.DB.Create(spot).Error)
	product := &models.Product{ScenicSpotID: spot.ID, Name: "美团产品", Enabled: true}
	assert.NoError(t, database.DB.Create(product).Error)
	mapping := &models.ProductMapping{ProductID: product.ID, Target: models.TargetMeituan, ExternalID: "DEAL-MT-1"}
	assert.NoError(t, database.DB.Create(mapping).Error)

	w := doJSON("/api/ota/meituan/order/pay/notice", gin.H{
		"orderId":       900010,
		"partnerDealId": "DEAL-MT-1",
		"quantity":      3,
		"travelDate":    "2025-12-27",
		"mobile":        "13900000000",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 200, resp["code"])

	var order models.Order
	assert.NoError(t, database.DB.
		Where("ota_platform = ? AND ota_order_no = ?", models.OtaMeituan, "900010").
		First(&order).Error)
	assert.Equal(t, models.StatusConfirming, order.Status)
	assert.Equal(t, 3, order.GuestCount)
}

// TestMeituanNotify_UnknownDeal 未建映射的产品拒绝落单
func TestMeituanNotify_UnknownDeal(t *testing.T) {
	w := doJSON("/api/ota/meituan/order/pay/notice", gin.H{
		"orderId":       900099,
		"partnerDealId": "NO-SUCH-DEAL",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 400, resp["code"])
}
