package adapter

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/golang-trip-core/internal/codec"
)

// ZiwoyouAdapter 自我游协议适配器
// JSON 报文 + MD5 签名；响应信封 {state,msg,data}，state==0 成功。
type ZiwoyouAdapter struct {
	Codec   *codec.ZiwoyouCodec
	BaseURL string
	client  *ProviderClient
}

// NewZiwoyouAdapter 创建自我游适配器
func NewZiwoyouAdapter(c *codec.ZiwoyouCodec, baseURL string) *ZiwoyouAdapter {
	return &ZiwoyouAdapter{
		Codec:   c,
		BaseURL: baseURL,
		client:  NewProviderClient("ziwoyou"),
	}
}

const ziwoyouOrderPath = "/api/thirdPaty/order/"

// ziwoyouRequest 请求信封；sign 对 param 的 JSON 串计算
type ziwoyouRequest struct {
	CustID    string          `json:"custId"`
	Timestamp int64           `json:"timestamp"`
	Sign      string          `json:"sign,omitempty"`
	Param     json.RawMessage `json:"param"`
}

// ziwoyouResponse 响应信封
type ziwoyouResponse struct {
	State   *int        `json:"state"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// Send 发送业务请求，operation 取 check/add/detail/cancel/pay/balance
func (a *ZiwoyouAdapter) Send(ctx context.Context, operation string, payload interface{}) Result {
	param, err := json.Marshal(payload)
	if err != nil {
		return Fail(CodeDecodeError, "序列化业务报文失败: "+err.Error())
	}

	timestamp := time.Now().UnixMilli()
	sign, err := a.Codec.Sign(timestamp, string(param))
	if err != nil {
		return Fail(CodeDecodeError, "签名失败: "+err.Error())
	}

	reqBytes, err := json.Marshal(ziwoyouRequest{
		CustID:    a.Codec.CustID,
		Timestamp: timestamp,
		Sign:      sign,
		Param:     param,
	})
	if err != nil {
		return Fail(CodeDecodeError, "序列化请求信封失败: "+err.Error())
	}

	url := strings.TrimSuffix(a.BaseURL, "/") + ziwoyouOrderPath + operation
	respBytes, err := a.client.Post(ctx, operation, url, "application/json", nil, reqBytes)
	if err != nil {
		return Fail(ClassifyTransportError(err), err.Error())
	}

	var resp ziwoyouResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return Fail(CodeDecodeError, "解析响应失败: "+err.Error())
	}
	// state 缺失视为异常响应
	if resp.State == nil {
		return Fail(CodeDecodeError, "响应缺少 state 字段")
	}

	if *resp.State == 0 {
		return Ok(strconv.Itoa(*resp.State), resp.Message, resp.Data)
	}
	// 业务失败也保留 data，异常单里能看到对端细节
	return Result{
		Code:    strconv.Itoa(*resp.State),
		Message: resp.Message,
		Data:    resp.Data,
	}
}
