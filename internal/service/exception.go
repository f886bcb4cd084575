package service

import (
	"time"

	"github.com/golang-trip-core/internal/database"
	"github.com/golang-trip-core/internal/logger"
	"github.com/golang-trip-core/internal/models"
	"go.uber.org/zap"
)

// EscalateException 落异常单转人工
// detail 保留对端原文，不做改写，便于运营核对。
func EscalateException(orderID int64, exceptionType, title, detail string) {
	now := time.Now()
	record := &models.ExceptionRecord{
		OrderID:        &orderID,
		ExceptionType:  exceptionType,
		Title:          title,
		Detail:         detail,
		Status:         models.ExceptionStatusPending,
		CreateDatetime: &now,
	}
	if err := database.DB.Create(record).Error; err != nil {
		// 异常单落库失败只能靠日志兜底
		logger.Logger.Error("异常单落库失败",
			zap.Int64("order_id", orderID),
			zap.String("type", exceptionType),
			zap.String("title", title),
			zap.String("detail", detail),
			zap.Error(err))
		return
	}
	logger.Logger.Warn("订单转人工处理",
		zap.Int64("order_id", orderID),
		zap.Int64("exception_id", record.ID),
		zap.String("type", exceptionType),
		zap.String("title", title))
}

// EscalateSyncException 非订单类异常（价格/库存推送失败）落异常单
func EscalateSyncException(exceptionType, title, detail string) {
	now := time.Now()
	record := &models.ExceptionRecord{
		ExceptionType:  exceptionType,
		Title:          title,
		Detail:         detail,
		Status:         models.ExceptionStatusPending,
		CreateDatetime: &now,
	}
	if err := database.DB.Create(record).Error; err != nil {
		logger.Logger.Error("异常单落库失败",
			zap.String("type", exceptionType),
			zap.String("title", title),
			zap.Error(err))
		return
	}
	logger.Logger.Warn("同步异常转人工处理",
		zap.Int64("exception_id", record.ID),
		zap.String("type", exceptionType),
		zap.String("title", title))
}

// ResolveException 人工处理完成后关闭异常单
func ResolveException(id int64, remark string) error {
	now := time.Now()
	return database.DB.Model(&models.ExceptionRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          models.ExceptionStatusResolved,
			"remark":          remark,
			"update_datetime": &now,
		}).Error
}
