package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"jobhub/internal/infrastructure/ratelimit"
	"jobhub/pkg/response"
)

type staticVerifier map[string]string

func (v staticVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	uid, ok := v[token]
	if !ok {
		return "", fmt.Errorf("unknown token")
	}
	return uid, nil
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = response.HTTPErrorHandler
	return e
}

func whoAmI(c echo.Context) error {
	return c.String(http.StatusOK, c.Get("uid").(string))
}

func TestAuthenticate(t *testing.T) {
	e := newEcho()
	auth := NewAuthMiddleware(staticVerifier{"good": "u1"})
	e.GET("/me", whoAmI, auth.Authenticate)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "u1", rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)

	_, ok = BearerToken("abc")
	assert.False(t, ok)
}

func TestRateLimitPerUser(t *testing.T) {
	e := newEcho()
	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionSendMessage: ratelimit.PerMinute(1, 2),
	})

	e.POST("/send", whoAmI, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("uid", c.QueryParam("as"))
			return next(c)
		}
	}, RateLimit(limiter, ratelimit.ActionSendMessage))

	send := func(uid string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send?as="+uid, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, send("u1").Code)
	assert.Equal(t, http.StatusOK, send("u1").Code)

	blocked := send("u1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), "retry_after")

	// Buckets are per user.
	assert.Equal(t, http.StatusOK, send("u2").Code)
}
