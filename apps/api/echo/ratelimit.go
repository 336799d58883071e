package echoapi

import (
	"net"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const limiterIdleTimeout = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter throttles requests per client IP. A non positive limit disables it.
// Forwarding headers are only honored with trustProxy, otherwise the socket peer is the client.
type ipRateLimiter struct {
	mu         sync.Mutex
	visitors   map[string]*visitor
	limit      rate.Limit
	burst      int
	trustProxy bool
	lastPurge  time.Time
}

func newIPRateLimiter(perSecond float64, burst int, trustProxy bool) *ipRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		visitors:   make(map[string]*visitor),
		limit:      rate.Limit(perSecond),
		burst:      burst,
		trustProxy: trustProxy,
		lastPurge:  time.Now(),
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPurge) > limiterIdleTimeout {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTimeout {
				delete(l.visitors, k)
			}
		}
		l.lastPurge = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *ipRateLimiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if l.limit <= 0 {
			return next(ctx)
		}
		if !l.allow(l.clientIP(ctx)) {
			return errTooManyRequests
		}
		return next(ctx)
	}
}

func (l *ipRateLimiter) clientIP(ctx echo.Context) string {
	if l.trustProxy {
		return ctx.RealIP()
	}
	addr := ctx.Request().RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
