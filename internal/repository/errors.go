// Package repository 定义了与数据库进行数据交换的接口和实现。
//
// 每个仓库接口都有 GORM（MySQL / SQLite）与 MongoDB 两种实现，
// 由 database.driver 配置选择。
package repository

import "errors"

// ErrNotFound 表示请求的记录不存在。
var ErrNotFound = errors.New("record not found")
