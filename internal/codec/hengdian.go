package codec

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// HengdianCodec 横店 XML 报文构造器
// 不加密；请求必须带 <AuthenticationToken> 用户名/密码子节点。
// 渠道专用账号存在时按渠道选择，否则回落到默认账号。
type HengdianCodec struct {
	// 默认账号
	Username string
	Password string
	// 渠道专用账号，key 为渠道后缀（ctrip/fliggy/meituan）
	PlatformCredentials map[string][2]string
}

// Credentials 按渠道选择账号
func (c *HengdianCodec) Credentials(platform string) (string, string) {
	if cred, ok := c.PlatformCredentials[platform]; ok && cred[0] != "" {
		return cred[0], cred[1]
	}
	return c.Username, c.Password
}

// BuildRequest 构造完整请求文档
// root 为接口对应的报文根节点名（ValidateRQ/BookRQ/QueryStatusRQ/
// SubscribeRoomStatusRQ/CancelRQ）。
// 序列化规则：map 转嵌套节点、数组转同名兄弟节点、nil 省略；
// 同层 key 排序，保证报文字节级可复现。
func (c *HengdianCodec) BuildRequest(root, platform string, body map[string]interface{}) (string, error) {
	username, password := c.Credentials(platform)

	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString("<" + root + ">")
	sb.WriteString("<AuthenticationToken>")
	sb.WriteString("<Username>" + escapeXML(username) + "</Username>")
	sb.WriteString("<Password>" + escapeXML(password) + "</Password>")
	sb.WriteString("</AuthenticationToken>")
	if err := writeXMLValue(&sb, body); err != nil {
		return "", err
	}
	sb.WriteString("</" + root + ">")
	return sb.String(), nil
}

// writeXMLValue 递归序列化 map
func writeXMLValue(sb *strings.Builder, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := writeXMLElement(sb, k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// writeXMLElement 序列化单个节点
func writeXMLElement(sb *strings.Builder, name string, v interface{}) error {
	switch val := v.(type) {
	case nil:
		// null 值省略
		return nil
	case map[string]interface{}:
		sb.WriteString("<" + name + ">")
		if err := writeXMLValue(sb, val); err != nil {
			return err
		}
		sb.WriteString("</" + name + ">")
	case []interface{}:
		// 数组转同名兄弟节点
		for _, item := range val {
			if err := writeXMLElement(sb, name, item); err != nil {
				return err
			}
		}
	case []map[string]interface{}:
		for _, item := range val {
			if err := writeXMLElement(sb, name, item); err != nil {
				return err
			}
		}
	case string:
		sb.WriteString("<" + name + ">" + escapeXML(val) + "</" + name + ">")
	default:
		sb.WriteString("<" + name + ">" + escapeXML(fmt.Sprintf("%v", val)) + "</" + name + ">")
	}
	return nil
}

// escapeXML 转义文本内容
func escapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// ParseHengdianResult 从响应文档提取 ResultCode / Message
func ParseHengdianResult(data []byte) (code, message string, err error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var current string
	for {
		token, terr := decoder.Token()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			return "", "", NewDecodeError("解析 XML 响应失败: %v", terr)
		}
		switch t := token.(type) {
		case xml.StartElement:
			current = t.Name.Local
		case xml.CharData:
			switch current {
			case "ResultCode":
				if code == "" {
					code = strings.TrimSpace(string(t))
				}
			case "Message":
				if message == "" {
					message = strings.TrimSpace(string(t))
				}
			}
		case xml.EndElement:
			current = ""
		}
	}
	if code == "" {
		return "", "", NewDecodeError("响应缺少 ResultCode 节点")
	}
	return code, message, nil
}

// ExtractElement 从响应文档提取任意节点文本（首个匹配）
func ExtractElement(data []byte, name string) string {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var inTarget bool
	for {
		token, err := decoder.Token()
		if err != nil {
			return ""
		}
		switch t := token.(type) {
		case xml.StartElement:
			inTarget = t.Name.Local == name
		case xml.CharData:
			if inTarget {
				return strings.TrimSpace(string(t))
			}
		case xml.EndElement:
			inTarget = false
		}
	}
}
