package resource

import (
	"context"
	"strings"
	"time"

	"github.com/golang-trip-core/internal/adapter"
)

// 重试策略：固定 3 次、间隔 2s，仅对瞬时故障重试。
// 解码失败与业务失败绝不重试。
var (
	retryAttempts = 3
	retryPause    = 2 * time.Second
)

// 对端报文中标识瞬时故障的关键字
var transientMarkers = []string{"超时", "网络", "timeout"}

// isTransient 判断失败是否为瞬时故障
func isTransient(res adapter.Result) bool {
	switch res.Code {
	case adapter.CodeNetworkError, adapter.CodeTimeout:
		return true
	case adapter.CodeDecodeError:
		return false
	}
	text := res.Code + " " + res.Message
	for _, marker := range transientMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// callWithRetry 带重试的对端调用
// 成功或非瞬时失败立即返回；瞬时失败最多尝试 retryAttempts 次。
func callWithRetry(ctx context.Context, fn func() adapter.Result) adapter.Result {
	var res adapter.Result
	for attempt := 0; attempt < retryAttempts; attempt++ {
		res = fn()
		if res.Success || !isTransient(res) {
			return res
		}
		if attempt < retryAttempts-1 {
			select {
			case <-ctx.Done():
				return res
			case <-time.After(retryPause):
			}
		}
	}
	return res
}
