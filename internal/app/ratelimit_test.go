package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableRedis points at a port nothing listens on.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func limitedRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", mw, func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimiter_FailOpen(t *testing.T) {
	rl := NewRedisRateLimiter(unreachableRedis(t), 1, time.Minute, "test")
	r := limitedRouter(rl.Middleware(zerolog.Nop(), true))

	for range 3 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiter_FailClosed(t *testing.T) {
	rl := NewRedisRateLimiter(unreachableRedis(t), 1, time.Minute, "test")
	r := limitedRouter(rl.Middleware(zerolog.Nop(), false))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNewRedisRateLimiter_Defaults(t *testing.T) {
	rl := NewRedisRateLimiter(nil, 0, 0, " ")
	assert.Equal(t, 60, rl.limit)
	assert.Equal(t, time.Minute, rl.window)
	assert.Equal(t, "rl", rl.prefix)
}

func TestNewRedisClient(t *testing.T) {
	rdb, err := NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	defer rdb.Close()
	assert.Equal(t, 2, rdb.Options().DB)

	_, err = NewRedisClient("http://nope")
	assert.Error(t, err)
}
