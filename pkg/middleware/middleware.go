package middleware

import (
    "time"

    "github.com/gin-gonic/gin"
    "github.com/google/uuid"
    "go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// Logger 는 요청마다 한 줄의 액세스 로그를 남긴다
func Logger(logger *zap.Logger) gin.HandlerFunc {
    return func(c *gin.Context) {
        start := time.Now()
        path := c.Request.URL.Path
        query := c.Request.URL.RawQuery

        c.Next()

        fields := []zap.Field{
            zap.Int("status", c.Writer.Status()),
            zap.String("method", c.Request.Method),
            zap.String("path", path),
            zap.String("query", query),
            zap.String("client_ip", c.ClientIP()),
            zap.Duration("latency", time.Since(start)),
            zap.String("request_id", c.GetString("request_id")),
        }
        if len(c.Errors) > 0 {
            fields = append(fields, zap.String("errors", c.Errors.String()))
        }

        switch {
        case c.Writer.Status() >= 500:
            logger.Error("Request failed", fields...)
        case c.Writer.Status() >= 400:
            logger.Warn("Request rejected", fields...)
        default:
            logger.Info("Request handled", fields...)
        }
    }
}

// RequestID 는 X-Request-ID 헤더를 전달하거나 새로 생성
func RequestID() gin.HandlerFunc {
    return func(c *gin.Context) {
        id := c.GetHeader(RequestIDHeader)
        if id == "" {
            id = uuid.New().String()
        }
        c.Set("request_id", id)
        c.Header(RequestIDHeader, id)
        c.Next()
    }
}
