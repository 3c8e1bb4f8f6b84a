package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/gin-gonic/gin"
    "go.uber.org/zap/zaptest"
)

func TestRequestID(t *testing.T) {
    gin.SetMode(gin.TestMode)
    router := gin.New()
    router.Use(RequestID(), Logger(zaptest.NewLogger(t)))
    router.GET("/ping", func(c *gin.Context) {
        c.String(http.StatusOK, c.GetString("request_id"))
    })

    w := httptest.NewRecorder()
    router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
    generated := w.Header().Get(RequestIDHeader)
    if generated == "" || w.Body.String() != generated {
        t.Errorf("generated id %q, body %q", generated, w.Body.String())
    }

    req := httptest.NewRequest(http.MethodGet, "/ping", nil)
    req.Header.Set(RequestIDHeader, "abc-123")
    w = httptest.NewRecorder()
    router.ServeHTTP(w, req)
    if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
        t.Errorf("forwarded id = %q", got)
    }
}
