package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/uart-console/internal/errors"
	"go.uber.org/zap"
)

// RequestLogger 使用zap记录每个请求
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("HTTP请求", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("HTTP请求", fields...)
		default:
			log.Debug("HTTP请求", fields...)
		}
	}
}

// Recovery 捕获panic并返回统一的错误响应
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("HTTP处理器panic",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path))
				appErr := errors.Newf(errors.ErrUnknown, "panic: %v", r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errors.NewErrorResponse(appErr))
			}
		}()
		c.Next()
	}
}
