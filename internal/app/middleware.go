package app

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limit allows N requests per Window for each client IP. A zero N disables it.
type Limit struct {
	N      int
	Window time.Duration
}

type Limits struct {
	Global  Limit
	Auth    Limit
	Booking Limit
	Review  Limit
}

func DefaultLimits() Limits {
	return Limits{
		Global:  Limit{N: 200, Window: 15 * time.Minute},
		Auth:    Limit{N: 10, Window: 15 * time.Minute},
		Booking: Limit{N: 15, Window: 15 * time.Minute},
		Review:  Limit{N: 5, Window: time.Hour},
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds a token bucket per client IP.
type limiterStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    Limit
}

func newLimiterStore(l Limit) *limiterStore {
	return &limiterStore{visitors: make(map[string]*visitor), limit: l}
}

func (s *limiterStore) allow(ip string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visitors[ip]
	if !ok {
		if len(s.visitors) >= 10000 {
			s.sweepLocked(now)
		}
		v = &visitor{limiter: rate.NewLimiter(rate.Every(s.limit.Window/time.Duration(s.limit.N)), s.limit.N)}
		s.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// sweepLocked drops visitors idle for a full window; their buckets are full again anyway.
func (s *limiterStore) sweepLocked(now time.Time) {
	for ip, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.limit.Window {
			delete(s.visitors, ip)
		}
	}
}

// rateLimit limits requests per client IP.
func (a *App) rateLimit(l Limit, msg string) gin.HandlerFunc {
	if l.N <= 0 || l.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	visitors := newLimiterStore(l)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !visitors.allow(ip, a.clock()) {
			a.logger().Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": msg})
			return
		}
		c.Next()
	}
}

// requestLogger writes one line per request.
func (a *App) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger().Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()))
	}
}

func (a *App) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		a.logger().Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
