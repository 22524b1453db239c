package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsdstock/internal/core/apperror"
)

func newTestEngine(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(), Trace(), ErrorHandler())
	r.GET("/", handler)
	return r
}

func serve(t *testing.T, r *gin.Engine, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return serveAt(t, r, "/", header)
}

func serveAt(t *testing.T, r *gin.Engine, path string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		details map[string]any
	}{
		{
			name:    "app error keeps details",
			err:     apperror.NewNotFound("document", "d-1"),
			status:  http.StatusNotFound,
			code:    apperror.CodeNotFound,
			details: map[string]any{"entity": "document", "id": "d-1"},
		},
		{
			name:    "internal error hides cause",
			err:     apperror.NewInternal(errors.New("connection reset")).WithDetail("sql", "SELECT 1"),
			status:  http.StatusInternalServerError,
			code:    apperror.CodeInternal,
			details: map[string]any{"request_id": "req-1"},
		},
		{
			name:    "plain error",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			code:    apperror.CodeInternal,
			details: map[string]any{"request_id": "req-1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestEngine(func(c *gin.Context) {
				_ = c.Error(tt.err)
				c.Abort()
			})
			w, body := serve(t, r, http.Header{HeaderRequestID: []string{"req-1"}})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, tt.details, body["details"])
		})
	}
}

func TestRecovery(t *testing.T) {
	r := newTestEngine(func(c *gin.Context) {
		panic("unexpected")
	})
	w, body := serve(t, r, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, w.Body.String(), "unexpected")
}

func TestTraceReusesIncomingIDs(t *testing.T) {
	r := newTestEngine(func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w, _ := serve(t, r, http.Header{
		HeaderRequestID: []string{"req-7"},
		HeaderTraceID:   []string{"trace-7"},
	})
	assert.Equal(t, "req-7", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "trace-7", w.Header().Get(HeaderTraceID))

	w, _ = serve(t, r, nil)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Equal(t, w.Header().Get(HeaderRequestID), w.Header().Get(HeaderTraceID))
}
