package adapter

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-trip-core/internal/codec"
	"github.com/google/uuid"
)

// CtripAdapter 携程协议适配器
// 请求信封: {"header":{accountId,serviceName,requestTime,version,sign},"body":"<a..p 密文>"}
type CtripAdapter struct {
	Codec   *codec.CtripCodec
	BaseURL string
	client  *ProviderClient
}

// NewCtripAdapter 创建携程适配器
func NewCtripAdapter(c *codec.CtripCodec, baseURL string) *CtripAdapter {
	return &CtripAdapter{
		Codec:   c,
		BaseURL: baseURL,
		client:  NewProviderClient("ctrip"),
	}
}

// ctripEnvelope 请求/响应信封
type ctripEnvelope struct {
	Header ctripHeader `json:"header"`
	Body   string      `json:"body,omitempty"`
}

type ctripHeader struct {
	AccountID     string `json:"accountId,omitempty"`
	ServiceName   string `json:"serviceName,omitempty"`
	RequestTime   string `json:"requestTime,omitempty"`
	Version       string `json:"version,omitempty"`
	Sign          string `json:"sign,omitempty"`
	ResultCode    string `json:"resultCode,omitempty"`
	ResultMessage string `json:"resultMessage,omitempty"`
}

// NewSequenceID 生成携程 sequenceId: 当天日期 + 32 位十六进制
func NewSequenceID() string {
	return time.Now().Format("20060102") + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Send 发送业务请求
func (a *CtripAdapter) Send(ctx context.Context, serviceName string, payload interface{}) Result {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return Fail(CodeDecodeError, "序列化业务报文失败: "+err.Error())
	}

	body, err := a.Codec.Encrypt(string(plaintext))
	if err != nil {
		return Fail(CodeDecodeError, "加密业务报文失败: "+err.Error())
	}

	requestTime := time.Now().Format("2006-01-02 15:04:05")
	envelope := ctripEnvelope{
		Header: ctripHeader{
			AccountID:   a.Codec.AccountID,
			ServiceName: serviceName,
			RequestTime: requestTime,
			Version:     a.Codec.Version,
			Sign:        a.Codec.Sign(serviceName, requestTime, body),
		},
		Body: body,
	}
	reqBytes, err := json.Marshal(envelope)
	if err != nil {
		return Fail(CodeDecodeError, "序列化请求信封失败: "+err.Error())
	}

	respBytes, err := a.client.Post(ctx, serviceName, a.BaseURL, "application/json", nil, reqBytes)
	if err != nil {
		return Fail(ClassifyTransportError(err), err.Error())
	}

	var resp ctripEnvelope
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return Fail(CodeDecodeError, "解析响应信封失败: "+err.Error())
	}

	result := Result{
		Success: resp.Header.ResultCode == "0000",
		Code:    resp.Header.ResultCode,
		Message: resp.Header.ResultMessage,
	}

	// 响应 body 同样是 a..p 编码的密文，先解码解密再反序列化
	if resp.Body != "" {
		plaintext, err := a.Codec.Decrypt(resp.Body)
		if err != nil {
			return Fail(CodeDecodeError, "解密响应报文失败: "+err.Error())
		}
		var data interface{}
		if err := json.Unmarshal([]byte(plaintext), &data); err != nil {
			return Fail(CodeDecodeError, "解析响应报文失败: "+err.Error())
		}
		result.Data = data
	}
	return result
}
