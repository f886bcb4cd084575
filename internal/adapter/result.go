package adapter

import "strconv"

// Result 协议适配器统一返回值
// 适配器从不向外抛异常：传输失败、解码失败、业务失败一律折叠成 Success=false，
// Code/Message 保留对端原文或本地错误分类。
type Result struct {
	Success bool        `json:"success"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// 本地错误分类码（对端没有响应时使用）
const (
	CodeNetworkError = "network_error"
	CodeTimeout      = "timeout"
	CodeDecodeError  = "decode_error"
)

// Ok 构造成功结果
func Ok(code, message string, data interface{}) Result {
	return Result{Success: true, Code: code, Message: message, Data: data}
}

// Fail 构造失败结果
func Fail(code, message string) Result {
	return Result{Success: false, Code: code, Message: message}
}

// DataMap 以 map 形式取响应数据，类型不符时返回 nil
func (r Result) DataMap() map[string]interface{} {
	if m, ok := r.Data.(map[string]interface{}); ok {
		return m
	}
	return nil
}

// DataString 从响应数据中取字符串字段
func (r Result) DataString(key string) string {
	m := r.DataMap()
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		// JSON 数字型单号转回字符串
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
