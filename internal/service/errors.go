// Package service 包含了机器人的业务逻辑层。
package service

import "errors"

// 面向调用方的业务错误。用户可见的提示文本由各服务自行发送，调用方只需记录日志。
var (
	ErrInvalidLink   = errors.New("invalid or expired link")
	ErrFileNotFound  = errors.New("file not found")
	ErrBatchOrder    = errors.New("batch last id is before first id")
	ErrBatchTooLarge = errors.New("batch range too large")
	ErrNotSubscribed = errors.New("user has not joined the required channels")
	ErrNotAuthorized = errors.New("not authorized")
	ErrInvalidInput  = errors.New("invalid input")
)
