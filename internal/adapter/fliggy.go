package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-trip-core/internal/codec"
)

// FliggyDistAdapter 飞猪分销协议适配器
// 表单参数 + SHA256WithRSA 签名，query 带 format=json，成功码 "2000"。
type FliggyDistAdapter struct {
	Codec   *codec.FliggyDistCodec
	BaseURL string
	client  *ProviderClient
}

// NewFliggyDistAdapter 创建飞猪分销适配器
func NewFliggyDistAdapter(c *codec.FliggyDistCodec, baseURL string) *FliggyDistAdapter {
	return &FliggyDistAdapter{
		Codec:   c,
		BaseURL: baseURL,
		client:  NewProviderClient("fliggy_dist"),
	}
}

// 各接口的签名公式；以 "_" 结尾表示无业务参数
var fliggySignFormulas = map[string]string{
	"queryProductBaseInfoByPage": "distributorId_timestamp_",
	"queryProductBaseInfoByIds":  "distributorId_timestamp_itemIds",
	"queryProductDetailInfo":     "distributorId_timestamp_itemIds",
	"queryProductPriceStock":     "distributorId_timestamp_itemIds",
	"validateOrder":              "distributorId_timestamp_itemId",
	"createOrder":                "distributorId_timestamp_outOrderId",
	"searchOrder":                "distributorId_timestamp_orderId",
	"cancelOrder":                "distributorId_timestamp_orderId",
	"refundOrder":                "distributorId_timestamp_orderId",
}

// fliggyResponse 响应信封
type fliggyResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// Send 发送业务请求
func (a *FliggyDistAdapter) Send(ctx context.Context, operation string, params map[string]interface{}) Result {
	formula, ok := fliggySignFormulas[operation]
	if !ok {
		return Fail(CodeDecodeError, "未知的分销接口: "+operation)
	}

	// 时间戳恒为毫秒整数
	timestamp := time.Now().UnixMilli()
	content := a.Codec.BuildSignContent(formula, timestamp, params)
	sign, err := a.Codec.Sign(content)
	if err != nil {
		return Fail(CodeDecodeError, "签名失败: "+err.Error())
	}

	form := url.Values{}
	form.Set("distributorId", a.Codec.DistributorID)
	form.Set("timestamp", fmt.Sprintf("%d", timestamp))
	for k, v := range params {
		form.Set(k, formValue(v))
	}
	form.Set("sign", sign)

	endpoint := strings.TrimSuffix(a.BaseURL, "/") + "/" + operation + "?format=json"
	respBytes, err := a.client.Post(ctx, operation, endpoint,
		"application/x-www-form-urlencoded", nil, []byte(form.Encode()))
	if err != nil {
		return Fail(ClassifyTransportError(err), err.Error())
	}

	var resp fliggyResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return Fail(CodeDecodeError, "解析响应失败: "+err.Error())
	}

	return Result{
		Success: resp.Code == "2000",
		Code:    resp.Code,
		Message: resp.Message,
		Data:    resp.Data,
	}
}

// formValue 表单参数序列化；数组逗号连接
func formValue(v interface{}) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", val)
	}
}
