package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-trip-core/internal/codec"
)

// MeituanAdapter 美团协议适配器
// MWS 请求头签名；报文体按接口能力开关决定是否加密（由端点表决定，不嗅探报文）。
type MeituanAdapter struct {
	Codec   *codec.MeituanCodec
	BaseURL string
	client  *ProviderClient
}

// NewMeituanAdapter 创建美团适配器
func NewMeituanAdapter(c *codec.MeituanCodec, baseURL string) *MeituanAdapter {
	return &MeituanAdapter{
		Codec:   c,
		BaseURL: baseURL,
		client:  NewProviderClient("meituan"),
	}
}

const meituanAPIPrefix = "/rhone/mtp/api/"

// 各端点是否加密报文体；支付/退款/核销通知明文
var meituanEncryptedEndpoints = map[string]bool{
	"level/price/notice/v2":   true,
	"order/pay/notice":        false,
	"order/refund/notice":     false,
	"order/consume/notice":    false,
	"order/reschedule/notice": true,
}

// meituanResponse 响应信封
type meituanResponse struct {
	Code     int         `json:"code"`
	Describe string      `json:"describe"`
	Data     interface{} `json:"data"`
}

// Send 发送业务请求
func (a *MeituanAdapter) Send(ctx context.Context, endpoint string, payload interface{}) Result {
	encrypted, known := meituanEncryptedEndpoints[endpoint]
	if !known {
		return Fail(CodeDecodeError, "未知的美团端点: "+endpoint)
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return Fail(CodeDecodeError, "序列化业务报文失败: "+err.Error())
	}

	body := string(plaintext)
	encryptionStatus := "0"
	if encrypted {
		body, err = a.Codec.EncryptBody(body)
		if err != nil {
			return Fail(CodeDecodeError, "加密报文失败: "+err.Error())
		}
		encryptionStatus = "1"
	}

	uri := meituanAPIPrefix + endpoint
	date := time.Now().UTC().Format(http.TimeFormat)
	headers := map[string]string{
		"PartnerId":           a.Codec.PartnerID,
		"Date":                date,
		"Authorization":       a.Codec.AuthorizationHeader(http.MethodPost, uri, date),
		"AppKey":              a.Codec.AppKey,
		"X-Encryption-Status": encryptionStatus,
	}

	respBytes, err := a.client.Post(ctx, endpoint,
		strings.TrimSuffix(a.BaseURL, "/")+uri, "application/json", headers, []byte(body))
	if err != nil {
		return Fail(ClassifyTransportError(err), err.Error())
	}

	var resp meituanResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return Fail(CodeDecodeError, "解析响应失败: "+err.Error())
	}

	return Result{
		Success: resp.Code == 0,
		Code:    strconv.Itoa(resp.Code),
		Message: resp.Describe,
		Data:    resp.Data,
	}
}
