package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "tsdstock/internal/core/context"
	"tsdstock/internal/infrastructure/storage/memory"
)

const headerTestUser = "X-Test-User"

func newIdempotentEngine(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(), ErrorHandler())
	r.Use(func(c *gin.Context) {
		user := &appctx.UserContext{UserID: c.GetHeader(headerTestUser)}
		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Next()
	})
	r.Use(Idempotency(memory.NewIdempotencyStore(time.Hour)))
	r.POST("/", handler)
	return r
}

func post(r *gin.Engine, user, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set(headerTestUser, user)
	req.Header.Set(HeaderIdempotencyKey, key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	calls := 0
	r := newIdempotentEngine(func(c *gin.Context) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})

	first := post(r, "user-1", "k-1", `{"a":1}`)
	require.Equal(t, http.StatusInternalServerError, first.Code)

	retry := post(r, "user-1", "k-1", `{"a":1}`)
	require.Equal(t, http.StatusCreated, retry.Code, retry.Body.String())
	assert.Empty(t, retry.Header().Get(HeaderIdempotentReplay))
	assert.Equal(t, 2, calls)
}

func TestIdempotency_KeysArePerUser(t *testing.T) {
	calls := 0
	r := newIdempotentEngine(func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})

	first := post(r, "user-1", "shared", `{"n":"A"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	other := post(r, "user-2", "shared", `{"n":"B"}`)
	require.Equal(t, http.StatusCreated, other.Code, other.Body.String())
	assert.Empty(t, other.Header().Get(HeaderIdempotentReplay))
	assert.JSONEq(t, `{"call":2}`, other.Body.String())

	replay := post(r, "user-1", "shared", `{"n":"A"}`)
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(HeaderIdempotentReplay))
	assert.JSONEq(t, `{"call":1}`, replay.Body.String())

	mismatch := post(r, "user-1", "shared", `{"n":"B"}`)
	assert.Equal(t, http.StatusConflict, mismatch.Code)
	assert.Equal(t, 2, calls)
}
