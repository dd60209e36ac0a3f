// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"file-share-bot/pkg/log"

	"github.com/gin-gonic/gin"
)

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter 和一个内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestLogger 是一个 Gin 中间件，用于记录请求日志。
// 只有管理 API 会记录请求体与响应体；webhook 推送包含用户消息，只记录元数据。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		withBody := strings.HasPrefix(c.Request.URL.Path, "/api/")

		var requestBody []byte
		var blw *bodyLogWriter
		if withBody {
			if c.Request.Body != nil {
				requestBody, _ = io.ReadAll(c.Request.Body)
			}
			// 将读取的请求体重新设置回 c.Request.Body，以便后续处理函数可以正常读取
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			blw = &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
			c.Writer = blw
		}

		c.Next()

		fields := []interface{}{
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.FullPath(),
		}
		if withBody {
			fields = append(fields, "requestBody", string(requestBody), "responseBody", blw.body.String())
		}
		log.Infow("HTTP Request Log", fields...)
	}
}
