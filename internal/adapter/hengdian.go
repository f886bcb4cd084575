package adapter

import (
	"context"
	"strings"

	"github.com/golang-trip-core/internal/codec"
)

// HengdianAdapter 横店协议适配器
// XML 报文 + AuthenticationToken 鉴权；ResultCode=="0" 成功。
type HengdianAdapter struct {
	Codec   *codec.HengdianCodec
	BaseURL string
	client  *ProviderClient
}

// NewHengdianAdapter 创建横店适配器
func NewHengdianAdapter(c *codec.HengdianCodec, baseURL string) *HengdianAdapter {
	return &HengdianAdapter{
		Codec:   c,
		BaseURL: baseURL,
		client:  NewProviderClient("hengdian"),
	}
}

// Send 发送业务请求
// root 为报文根节点名，platform 决定凭证选择，body 为业务字段。
// 成功与否以 ResultCode 判定；Data 为原始 XML 响应串，业务字段由调用方提取。
func (a *HengdianAdapter) Send(ctx context.Context, root, platform string, body map[string]interface{}) Result {
	reqXML, err := a.Codec.BuildRequest(root, platform, body)
	if err != nil {
		return Fail(CodeDecodeError, "构造请求报文失败: "+err.Error())
	}

	url := strings.TrimSuffix(a.BaseURL, "/") + "/" + root
	respBytes, err := a.client.Post(ctx, root, url, "application/xml", nil, []byte(reqXML))
	if err != nil {
		return Fail(ClassifyTransportError(err), err.Error())
	}

	code, message, err := codec.ParseHengdianResult(respBytes)
	if err != nil {
		return Fail(CodeDecodeError, err.Error())
	}

	return Result{
		Success: code == "0",
		Code:    code,
		Message: message,
		Data:    string(respBytes),
	}
}
