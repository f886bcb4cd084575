package controller

import "errors"

// 渠道推单落库的可应答错误
var (
	errMissingOrderFields = errors.New("报文缺少订单必填字段")
	errUnknownProduct     = errors.New("产品未建立渠道映射")
)
