package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-trip-core/internal/logger"
	"go.uber.org/zap"
)

// Recovery 异常恢复中间件
// 回调入口 panic 不能拖垮进程，对端会重推，落日志后按 500 应答。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Logger.Error("请求处理发生 panic",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
					zap.String("client_ip", c.ClientIP()),
				)

				c.JSON(http.StatusInternalServerError, gin.H{
					"code":    500,
					"message": "服务器内部错误",
					"data":    nil,
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
