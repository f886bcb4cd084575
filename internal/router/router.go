package router

import (
	"github.com/gin-gonic/gin"
	"github.com/golang-trip-core/config"
	"github.com/golang-trip-core/internal/controller"
	"github.com/golang-trip-core/internal/middleware"
	"github.com/golang-trip-core/internal/reconcile"
)

// SetupRouter 设置路由
func SetupRouter(reconciler *reconcile.Reconciler) *gin.Engine {
	// 设置运行模式
	gin.SetMode(config.Cfg.App.Mode)

	r := gin.New()

	// 全局中间件
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": config.Cfg.App.Name,
			"version": config.Cfg.App.Version,
		})
	})

	// Prometheus 指标
	r.GET("/metrics", middleware.PrometheusHandler())

	webhookController := controller.NewWebhookController(reconciler)
	otaController := controller.NewOtaController(reconciler)

	// 资源方回调，景区编码段可选（业务字段识别失败时兜底）
	callback := r.Group("/api/callback")
	{
		callback.POST("/ziwoyou", webhookController.ZiwoyouCallback)
		callback.POST("/ziwoyou/:spot_code", webhookController.ZiwoyouCallback)
		callback.POST("/hengdian", webhookController.HengdianCallback)
		callback.POST("/hengdian/:spot_code", webhookController.HengdianCallback)
		callback.POST("/fliggy_dist", webhookController.FliggyCallback)
		callback.POST("/fliggy_dist/:spot_code", webhookController.FliggyCallback)
	}

	// 销售渠道推单
	ota := r.Group("/api/ota")
	{
		ota.POST("/ctrip/order", otaController.CtripNotify)
		ota.POST("/meituan/order/:notice/notice", otaController.MeituanNotify)
	}

	return r
}
