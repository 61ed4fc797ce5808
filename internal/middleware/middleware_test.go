package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"serialkit/internal/utils"
)

func newTestEngine(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(utils.NewServiceLogger(logger, "http-bridge")))

	router.GET("/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/ready", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	router.GET("/api/v1/read", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/api/v1/panic", func(c *gin.Context) { panic("parser exploded") })
	router.GET("/api/v1/late-panic", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("after write")
	})
	return router
}

func serve(router http.Handler, path, requestID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLoggingMiddleware_TagsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := newTestEngine(zap.New(core))

	w := serve(router, "/api/v1/read", "req-42")
	require.Equal(t, http.StatusOK, w.Code)

	entries := logs.FilterMessage("API request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "/api/v1/read", fields["path"])
	assert.EqualValues(t, 200, fields["status_code"])
	assert.EqualValues(t, 2, fields["body_size"])
}

func TestLoggingMiddleware_SkipsHealthyProbes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := newTestEngine(zap.New(core))

	serve(router, "/live", "")
	assert.Zero(t, logs.FilterMessage("API request").Len())

	serve(router, "/ready", "")
	entries := logs.FilterMessage("API request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := newTestEngine(zap.New(core))

	w := serve(router, "/api/v1/panic", "req-7")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"request_id":"req-7"`)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")

	panics := logs.FilterMessage("Panic recovered").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "req-7", panics[0].ContextMap()["request_id"])
	assert.Equal(t, "/api/v1/panic", panics[0].ContextMap()["route"])
}

func TestRecoveryMiddleware_AfterWrite(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	router := newTestEngine(zap.New(core))

	w := serve(router, "/api/v1/late-panic", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial", w.Body.String())
}
