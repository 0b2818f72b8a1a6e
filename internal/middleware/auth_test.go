package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type tokenTable map[string]string

func (t tokenTable) Authenticate(_ context.Context, token string) (string, error) {
	if uid, ok := t[token]; ok {
		return uid, nil
	}
	return "", errors.New("invalid token")
}

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/who", mw, func(c *gin.Context) {
		c.String(http.StatusOK, "uid=%s", UserID(c))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(tokenTable{"good": "u1"}))

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid bearer", "Bearer good", http.StatusOK, "uid=u1"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"bad scheme", "Basic good", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer bad", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestWSAuthMiddlewareAllowsAnonymous(t *testing.T) {
	r := newRouter(WSAuthMiddleware(tokenTable{"good": "u1"}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "uid=", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who?token=good", nil))
	assert.Equal(t, "uid=u1", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who?token=bad", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
