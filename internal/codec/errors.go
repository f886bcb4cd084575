package codec

import (
	"errors"
	"fmt"
)

// DecodeError 报文解码失败
// 长度不对、字符集非法、填充损坏等都归入此类；调用方只允许上报，不允许盲目重试。
type DecodeError struct {
	Reason string
}

// Error 实现 error 接口
func (e *DecodeError) Error() string {
	return fmt.Sprintf("报文解码失败: %s", e.Reason)
}

// NewDecodeError 创建解码错误
func NewDecodeError(format string, args ...interface{}) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// IsDecodeError 判断是否为解码错误
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
