package middleware

import (
	"sync"
	"time"

	"github.com/goadmin/pkg/errors"
	"github.com/goadmin/pkg/logger"
	"github.com/goadmin/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// 上下文键
const (
	LocalsSubject     = "subject"
	LocalsUserID      = "userId"
	LocalsUsername    = "username"
	LocalsPermissions = "permissions"
	LocalsRequestID   = "requestId"
)

// abort 按分类错误输出响应并结束请求
func abort(c *fiber.Ctx, err *errors.AppError) error {
	return response.Abort(c, err.Code, err.Message)
}

// Recovery 恢复中间件
func Recovery() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("error", r),
					zap.String("path", c.Path()),
					zap.String("method", c.Method()),
				)
				err = abort(c, errors.ErrInternalServer)
			}
		}()
		return c.Next()
	}
}

// Cors 跨域中间件
func Cors() fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		if origin != "" {
			c.Set("Access-Control-Allow-Origin", origin)
			c.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			c.Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization, X-Request-ID")
			c.Set("Access-Control-Expose-Headers", "Content-Length, X-Request-ID")
			c.Set("Access-Control-Allow-Credentials", "true")
			c.Set("Vary", "Origin")
		}

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

// RequestID 请求ID中间件
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals(LocalsRequestID, requestID)
		c.Set("X-Request-ID", requestID)
		return c.Next()
	}
}

// GetRequestID 从上下文获取请求ID
func GetRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalsRequestID).(string)
	return id
}

// RateLimiter 按客户端IP的令牌桶限流
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter 创建限流器，perSecond<=0 时不限流
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idle:    5 * time.Minute,
		now:     time.Now,
	}
}

// Allow 判断该客户端本次请求是否放行
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		rl.sweep(now)
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// sweep 清理长时间未访问的桶，调用方持锁
func (rl *RateLimiter) sweep(now time.Time) {
	for k, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.idle {
			delete(rl.buckets, k)
		}
	}
}

// Middleware 限流中间件
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rl.Allow(c.IP()) {
			return abort(c, errors.ErrTooManyRequest)
		}
		return c.Next()
	}
}

// ErrorHandler fiber 全局错误处理，处理函数返回的错误在这里统一输出
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		if appErr.Code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("path", c.Path()),
				zap.String("requestId", GetRequestID(c)),
				zap.Error(err),
			)
		}
		return response.Abort(c, appErr.Code, appErr.Message)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return response.Abort(c, fiberErr.Code, fiberErr.Message)
	}

	logger.Error("unhandled error",
		zap.String("path", c.Path()),
		zap.String("requestId", GetRequestID(c)),
		zap.Error(err),
	)
	return abort(c, errors.ErrInternalServer)
}
