package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-trip-core/config"
	"github.com/golang-trip-core/internal/codec"
	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"github.com/golang-trip-core/internal/mq"
	"github.com/golang-trip-core/internal/reconcile"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OtaController 销售渠道回调控制器
// 携程推单走加密信封，美团按接口开关推明文或密文 JSON。
// 入口只落单与入队，对资源方的确认/取消由消费端执行。
type OtaController struct {
	reconciler   *reconcile.Reconciler
	ctripCodec   *codec.CtripCodec
	meituanCodec *codec.MeituanCodec
}

// NewOtaController 按渠道配置创建控制器，未配置的渠道入口直接拒绝
func NewOtaController(reconciler *reconcile.Reconciler) *OtaController {
	c := &OtaController{reconciler: reconciler}

	cfg := config.GetConfig()
	if cfg == nil {
		return c
	}

	if ct := cfg.Ota.Ctrip; ct.AesKey != "" {
		c.ctripCodec = &codec.CtripCodec{
			AccountID: ct.AccountID,
			Version:   ct.Version,
			Key:       []byte(ct.AesKey),
			IV:        []byte(ct.AesIV),
			SecretKey: ct.SecretKey,
		}
	}
	if mt := cfg.Ota.Meituan; mt.BodyKey != "" {
		mc, err := codec.NewMeituanCodec(mt.PartnerID, mt.AppKey, mt.Secret, mt.BodyKey)
		if err != nil {
			logger.Logger.Warn("美团编解码器初始化失败，密文回调将被拒绝", zap.Error(err))
		} else {
			c.meituanCodec = mc
		}
	}
	return c
}

// ctripEnvelope 携程信封
type ctripEnvelope struct {
	Header ctripHeader `json:"header"`
	Body   string      `json:"body,omitempty"`
}

// ctripHeader 信封头
type ctripHeader struct {
	AccountID     string `json:"accountId,omitempty"`
	ServiceName   string `json:"serviceName,omitempty"`
	RequestTime   string `json:"requestTime,omitempty"`
	Version       string `json:"version,omitempty"`
	Sign          string `json:"sign,omitempty"`
	ResultCode    string `json:"resultCode,omitempty"`
	ResultMessage string `json:"resultMessage,omitempty"`
}

// ctripOrderNotice 携程订单报文（解密后）
type ctripOrderNotice struct {
	SequenceID   string `json:"sequenceId"`
	OtaOrderID   string `json:"otaOrderId"`
	ContactName  string `json:"contactName"`
	ContactPhone string `json:"contactPhone"`
	Items        []struct {
		ItemID       string `json:"itemId"`
		UseStartDate string `json:"useStartDate"`
		UseEndDate   string `json:"useEndDate"`
		Quantity     int    `json:"quantity"`
		Passengers   []struct {
			Name           string `json:"name"`
			CredentialNo   string `json:"credentialNo"`
			CredentialType string `json:"credentialType"`
		} `json:"passengers"`
	} `json:"items"`
}

// CtripNotify 携程推单入口
// 验签→解密→按 serviceName 分发；应答同样走加密信封，resultCode 0000 表示受理。
func (c *OtaController) CtripNotify(ctx *gin.Context) {
	if c.ctripCodec == nil {
		ctx.JSON(http.StatusOK, ctripEnvelope{Header: ctripHeader{
			ResultCode: "9999", ResultMessage: "渠道未配置",
		}})
		return
	}

	var env ctripEnvelope
	if err := ctx.ShouldBindJSON(&env); err != nil {
		c.ctripAck(ctx, "", "1000", "报文格式错误")
		return
	}

	expected := c.ctripCodec.Sign(env.Header.ServiceName, env.Header.RequestTime, env.Body)
	if env.Header.Sign != expected {
		logger.Logger.Warn("携程回调验签失败",
			zap.String("service_name", env.Header.ServiceName),
			zap.String("account_id", env.Header.AccountID))
		c.ctripAck(ctx, "", "1001", "签名校验失败")
		return
	}

	plaintext, err := c.ctripCodec.Decrypt(env.Body)
	if err != nil {
		c.ctripAck(ctx, "", "1002", "报文解密失败")
		return
	}

	var notice ctripOrderNotice
	if err := json.Unmarshal([]byte(plaintext), &notice); err != nil {
		c.ctripAck(ctx, "", "1002", "报文解析失败")
		return
	}

	switch env.Header.ServiceName {
	case "CreateOrder", "OrderConfirm":
		if err := c.intakeCtripOrder(ctx.Request.Context(), &notice); err != nil {
			c.ctripAck(ctx, notice.SequenceID, "2001", err.Error())
			return
		}
	case "CancelOrder", "OrderCancel":
		c.dispatchByOtaOrder(ctx.Request.Context(), models.OtaCtrip, notice.OtaOrderID, mq.ActionCancel)
	case "OrderConsumedNotice":
		c.dispatchByOtaOrder(ctx.Request.Context(), models.OtaCtrip, notice.OtaOrderID, mq.ActionVerify)
	default:
		logger.Logger.Info("未处理的携程服务", zap.String("service_name", env.Header.ServiceName))
	}

	c.ctripAck(ctx, notice.SequenceID, "0000", "成功")
}

// ctripAck 加密信封应答，报文体回显 sequenceId
func (c *OtaController) ctripAck(ctx *gin.Context, sequenceID, code, message string) {
	env := ctripEnvelope{Header: ctripHeader{
		ResultCode:    code,
		ResultMessage: message,
	}}
	if c.ctripCodec != nil {
		ackBody, _ := json.Marshal(map[string]string{"sequenceId": sequenceID})
		if encrypted, err := c.ctripCodec.Encrypt(string(ackBody)); err == nil {
			env.Body = encrypted
		}
	}
	ctx.JSON(http.StatusOK, env)
}

// intakeCtripOrder 携程推单落库并入队确认
// 渠道订单号已存在时直接复用，不重复落单。
func (c *OtaController) intakeCtripOrder(ctx context.Context, notice *ctripOrderNotice) error {
	if notice.OtaOrderID == "" || len(notice.Items) == 0 {
		return errMissingOrderFields
	}
	item := notice.Items[0]

	var existing models.Order
	err := database.DB.
		Where("ota_platform = ? AND ota_order_no = ?", models.OtaCtrip, notice.OtaOrderID).
		First(&existing).Error
	if err == nil {
		c.enqueueOrderJob(ctx, existing.ID, mq.ActionConfirm)
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	var mapping models.ProductMapping
	err = database.DB.
		Where("target = ? AND external_id = ?", models.TargetCtrip, item.ItemID).
		First(&mapping).Error
	if err != nil {
		return errUnknownProduct
	}
	var product models.Product
	if err := database.DB.First(&product, mapping.ProductID).Error; err != nil {
		return errUnknownProduct
	}

	order := &models.Order{
		OrderNo:      newOrderNo(),
		OtaPlatform:  models.OtaCtrip,
		OtaOrderNo:   notice.OtaOrderID,
		Status:       models.StatusConfirming,
		CheckInDate:  item.UseStartDate,
		CheckOutDate: item.UseEndDate,
		GuestCount:   item.Quantity,
		ContactPhone: notice.ContactPhone,
		ProductID:    &product.ID,
		HotelID:      product.HotelID,
		RoomTypeID:   product.RoomTypeID,
	}
	guests := make([]models.Guest, 0, len(item.Passengers))
	for _, p := range item.Passengers {
		guests = append(guests, models.Guest{
			Name:           p.Name,
			CredentialNo:   p.CredentialNo,
			CredentialType: p.CredentialType,
		})
	}
	if err := order.SetGuests(guests); err != nil {
		return err
	}

	if err := database.DB.Create(order).Error; err != nil {
		return err
	}
	logger.Logger.Info("携程推单已落库",
		zap.String("order_no", order.OrderNo),
		zap.String("ota_order_no", notice.OtaOrderID))

	c.enqueueOrderJob(ctx, order.ID, mq.ActionConfirm)
	return nil
}

// meituanNotice 美团回调报文（解密后）
type meituanNotice struct {
	OrderID        int64  `json:"orderId"`
	PartnerOrderID string `json:"partnerOrderId"`
	PartnerDealID  string `json:"partnerDealId"`
	Quantity       int    `json:"quantity"`
	TravelDate     string `json:"travelDate"`
	Mobile         string `json:"mobile"`
}

// MeituanNotify 美团订单通知入口
// 路径末段区分通知类型：pay 落单确认、refund 取消、consume 核销。
func (c *OtaController) MeituanNotify(ctx *gin.Context) {
	raw, err := ctx.GetRawData()
	if err != nil {
		ctx.JSON(http.StatusOK, gin.H{"code": 400, "describe": "读取报文失败"})
		return
	}

	body := string(raw)
	if ctx.GetHeader("X-Encryption-Status") == "1" {
		if c.meituanCodec == nil {
			ctx.JSON(http.StatusOK, gin.H{"code": 400, "describe": "渠道未配置密钥"})
			return
		}
		body, err = c.meituanCodec.DecryptBody(strings.TrimSpace(body))
		if err != nil {
			ctx.JSON(http.StatusOK, gin.H{"code": 400, "describe": "报文解密失败"})
			return
		}
	}

	var notice meituanNotice
	if err := json.Unmarshal([]byte(body), &notice); err != nil {
		ctx.JSON(http.StatusOK, gin.H{"code": 400, "describe": "报文解析失败"})
		return
	}

	switch ctx.Param("notice") {
	case "pay":
		if err := c.intakeMeituanOrder(ctx.Request.Context(), &notice); err != nil {
			ctx.JSON(http.StatusOK, gin.H{"code": 400, "describe": err.Error()})
			return
		}
	case "refund":
		c.dispatchByOtaOrder(ctx.Request.Context(), models.OtaMeituan, meituanOrderNo(&notice), mq.ActionCancel)
	case "consume":
		c.dispatchByOtaOrder(ctx.Request.Context(), models.OtaMeituan, meituanOrderNo(&notice), mq.ActionVerify)
	default:
		ctx.JSON(http.StatusOK, gin.H{"code": 400, "describe": "未知的通知类型"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"code": 200, "describe": "成功"})
}

// meituanOrderNo 美团侧订单标识，优先渠道订单号
func meituanOrderNo(notice *meituanNotice) string {
	if notice.OrderID > 0 {
		return strconv.FormatInt(notice.OrderID, 10)
	}
	return notice.PartnerOrderID
}

// intakeMeituanOrder 美团支付通知落单并入队确认
func (c *OtaController) intakeMeituanOrder(ctx context.Context, notice *meituanNotice) error {
	if notice.OrderID == 0 || notice.PartnerDealID == "" {
		return errMissingOrderFields
	}
	otaOrderNo := strconv.FormatInt(notice.OrderID, 10)

	var existing models.Order
	err := database.DB.
		Where("ota_platform = ? AND ota_order_no = ?", models.OtaMeituan, otaOrderNo).
		First(&existing).Error
	if err == nil {
		c.enqueueOrderJob(ctx, existing.ID, mq.ActionConfirm)
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	var mapping models.ProductMapping
	err = database.DB.
		Where("target = ? AND external_id = ?", models.TargetMeituan, notice.PartnerDealID).
		First(&mapping).Error
	if err != nil {
		return errUnknownProduct
	}
	var product models.Product
	if err := database.DB.First(&product, mapping.ProductID).Error; err != nil {
		return errUnknownProduct
	}

	order := &models.Order{
		OrderNo:      newOrderNo(),
		OtaPlatform:  models.OtaMeituan,
		OtaOrderNo:   otaOrderNo,
		Status:       models.StatusConfirming,
		CheckInDate:  notice.TravelDate,
		GuestCount:   notice.Quantity,
		ContactPhone: notice.Mobile,
		ProductID:    &product.ID,
		HotelID:      product.HotelID,
		RoomTypeID:   product.RoomTypeID,
	}
	if err := database.DB.Create(order).Error; err != nil {
		return err
	}
	logger.Logger.Info("美团推单已落库",
		zap.String("order_no", order.OrderNo),
		zap.String("ota_order_no", otaOrderNo))

	c.enqueueOrderJob(ctx, order.ID, mq.ActionConfirm)
	return nil
}

// dispatchByOtaOrder 按渠道订单号定位订单并入队动作
func (c *OtaController) dispatchByOtaOrder(ctx context.Context, platform int, otaOrderNo, action string) {
	if otaOrderNo == "" {
		return
	}
	var order models.Order
	err := database.DB.
		Where("ota_platform = ? AND (ota_order_no = ? OR order_no = ?)", platform, otaOrderNo, otaOrderNo).
		First(&order).Error
	if err != nil {
		logger.Logger.Warn("渠道通知指向的订单不存在",
			zap.Int("platform", platform),
			zap.String("ota_order_no", otaOrderNo),
			zap.String("action", action))
		return
	}
	c.enqueueOrderJob(ctx, order.ID, action)
}

// enqueueOrderJob 订单动作入队，队列不可用时降级为本地 goroutine
func (c *OtaController) enqueueOrderJob(ctx context.Context, orderID int64, action string) {
	msg := mq.OrderJobMessage{OrderID: orderID, Action: action, Timestamp: time.Now().Unix()}
	mq.Enqueue(ctx, mq.TopicOrderJob, action, msg, func() {
		bg := context.Background()
		var order models.Order
		if err := database.DB.First(&order, orderID).Error; err != nil {
			return
		}
		switch action {
		case mq.ActionConfirm:
			c.reconciler.ConfirmOrder(bg, &order)
		case mq.ActionCancel:
			c.reconciler.RequestCancel(bg, &order)
		case mq.ActionVerify:
			c.reconciler.VerifyOrder(bg, &order)
		}
	})
}

// newOrderNo 生成本系统订单号（32 位，无连字符 UUID）
func newOrderNo() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
