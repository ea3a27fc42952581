// Package middleware 提供 HTTP 中间件
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Jinstronda/jinstronda-memory/pkg/logger"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// RequestID 注入请求 ID，并把命中的容器标签写入日志上下文
// 后续所有日志行自动携带 request_id 与 container_tag
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)

		ctx := logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID)
		if tag := containerTagOf(c); tag != "" {
			ctx = logger.WithContext(ctx, logger.ContainerTagKey, tag)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// containerTagOf 从路径参数或查询串取容器标签
// 请求体里的标签由 handler 解析后自行补充
func containerTagOf(c *gin.Context) string {
	if tag := c.Param("tag"); tag != "" {
		return tag
	}
	return c.Query("containerTag")
}
