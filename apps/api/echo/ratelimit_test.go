package echoapi

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiter(t *testing.T) {
	e := echo.New()
	ok := func(ctx echo.Context) error { return ctx.NoContent(http.StatusOK) }

	call := func(h echo.HandlerFunc, peer, forwardedFor string) error {
		req := httptest.NewRequest(http.MethodPost, "/v1/users/login", nil)
		req.RemoteAddr = peer + ":1234"
		if forwardedFor != "" {
			req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
		}
		return h(e.NewContext(req, httptest.NewRecorder()))
	}

	t.Run("burst then throttled", func(t *testing.T) {
		h := newIPRateLimiter(0.001, 2, false).middleware(ok)
		assert.NoError(t, call(h, "10.0.0.1", ""))
		assert.NoError(t, call(h, "10.0.0.1", ""))
		assert.Equal(t, errTooManyRequests, call(h, "10.0.0.1", ""))

		// other clients have their own budget
		assert.NoError(t, call(h, "10.0.0.2", ""))
	})

	t.Run("forwarded headers ignored by default", func(t *testing.T) {
		h := newIPRateLimiter(0.001, 2, false).middleware(ok)
		assert.NoError(t, call(h, "10.0.0.1", "192.168.0.1"))
		assert.NoError(t, call(h, "10.0.0.1", "192.168.0.2"))
		for i := 3; i < 10; i++ {
			assert.Equal(t, errTooManyRequests, call(h, "10.0.0.1", "192.168.0."+strconv.Itoa(i)))
		}
	})

	t.Run("forwarded headers behind a trusted proxy", func(t *testing.T) {
		h := newIPRateLimiter(0.001, 1, true).middleware(ok)
		assert.NoError(t, call(h, "10.0.0.1", "192.168.0.1"))
		assert.Equal(t, errTooManyRequests, call(h, "10.0.0.1", "192.168.0.1"))
		assert.NoError(t, call(h, "10.0.0.1", "192.168.0.2"))
	})

	t.Run("disabled", func(t *testing.T) {
		h := newIPRateLimiter(0, 1, false).middleware(ok)
		for i := 0; i < 10; i++ {
			assert.NoError(t, call(h, "10.0.0.1", ""))
		}
	})
}
