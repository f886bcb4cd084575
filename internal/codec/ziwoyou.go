package codec

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// ZiwoyouCodec 自我游签名器
// 签名原文: custId + apikey + 毫秒时间戳 + JSON 报文体，MD5 小写十六进制。
// 配置中直接给出 apikey 的透传模式不做摘要，apikey 原样作为凭证字段发出。
type ZiwoyouCodec struct {
	CustID string
	APIKey string
	// DirectKey 为 true 时 apikey 明文透传，不参与摘要计算
	DirectKey bool
}

// Sign 计算请求凭证；透传模式直接返回 apikey 本身
func (c *ZiwoyouCodec) Sign(timestampMillis int64, jsonBody string) (string, error) {
	if c.DirectKey {
		if c.APIKey == "" {
			return "", fmt.Errorf("透传模式下 apikey 不能为空")
		}
		return c.APIKey, nil
	}
	if c.APIKey == "" || c.CustID == "" {
		return "", fmt.Errorf("签名模式下 apikey 与 custId 均不能为空")
	}
	raw := fmt.Sprintf("%s%s%d%s", c.CustID, c.APIKey, timestampMillis, jsonBody)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:]), nil
}
