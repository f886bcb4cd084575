package adapter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/golang-trip-core/config"
	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"go.uber.org/zap"
)

// 日志落库时报文截断长度
const maxLoggedBody = 4096

// ProviderClient 对端 HTTP 客户端
// 超时有界（默认 30s），每次请求/响应都截断落库并打结构化日志。
type ProviderClient struct {
	Provider string
	HTTP     *http.Client
}

// NewProviderClient 创建对端客户端，超时取自配置
func NewProviderClient(provider string) *ProviderClient {
	timeout := 30 * time.Second
	if cfg := config.GetConfig(); cfg != nil && cfg.Sync.HTTPTimeout > 0 {
		timeout = cfg.Sync.HTTPTimeout
	}
	return &ProviderClient{
		Provider: provider,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

// Post 发送请求并返回响应字节
// 传输层错误原样返回给适配器归类；日志与指标在此统一处理。
func (c *ProviderClient) Post(ctx context.Context, operation, url, contentType string, headers map[string]string, body []byte) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	cost := time.Since(start)
	providerCallDuration.WithLabelValues(c.Provider, operation).Observe(cost.Seconds())

	if err != nil {
		providerCallsTotal.WithLabelValues(c.Provider, operation, "transport_error").Inc()
		c.logCall(operation, url, body, nil, false, cost)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		providerCallsTotal.WithLabelValues(c.Provider, operation, "transport_error").Inc()
		c.logCall(operation, url, body, nil, false, cost)
		return nil, err
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	outcome := "ok"
	if !ok {
		outcome = "http_error"
	}
	providerCallsTotal.WithLabelValues(c.Provider, operation, outcome).Inc()
	c.logCall(operation, url, body, respBody, ok, cost)

	if !ok {
		return respBody, &HTTPStatusError{StatusCode: resp.StatusCode}
	}
	return respBody, nil
}

// HTTPStatusError 非 2xx 响应
type HTTPStatusError struct {
	StatusCode int
}

// Error 实现 error 接口
func (e *HTTPStatusError) Error() string {
	return http.StatusText(e.StatusCode)
}

// logCall 请求/响应落库并打日志，body 截断
func (c *ProviderClient) logCall(operation, url string, reqBody, respBody []byte, success bool, cost time.Duration) {
	if logger.Logger != nil {
		logger.Logger.Debug("对端接口调用",
			zap.String("provider", c.Provider),
			zap.String("operation", operation),
			zap.String("url", url),
			zap.Bool("success", success),
			zap.Duration("cost", cost),
			zap.String("request", truncate(reqBody)),
			zap.String("response", truncate(respBody)))
	}

	if database.DB == nil {
		return
	}
	now := time.Now()
	row := &models.ApiLog{
		Provider:       c.Provider,
		Operation:      operation,
		URL:            url,
		RequestBody:    truncate(reqBody),
		ResponseBody:   truncate(respBody),
		Success:        success,
		CostMs:         cost.Milliseconds(),
		CreateDatetime: &now,
	}
	if err := database.DB.Create(row).Error; err != nil && logger.Logger != nil {
		logger.Logger.Warn("接口日志落库失败",
			zap.String("provider", c.Provider),
			zap.String("operation", operation),
			zap.Error(err))
	}
}

// truncate 报文截断
func truncate(body []byte) string {
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody]) + "...(truncated)"
	}
	return string(body)
}

// ClassifyTransportError 传输层错误归类为本地分类码
func ClassifyTransportError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeNetworkError
}
