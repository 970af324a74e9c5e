package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/goadmin/pkg/config"
	"github.com/goadmin/pkg/database"
	"github.com/goadmin/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LoginGuard 登录失败计数，超过阈值后锁定用户名一段时间
//
// Redis 不可用时放行登录，只记录告警。
type LoginGuard struct {
	cache       *database.Cache
	maxFailures int
	lock        time.Duration
}

// NewLoginGuard 创建登录保护；maxFailures<=0 时关闭
func NewLoginGuard(client *redis.Client, cfg *config.LoginConfig) *LoginGuard {
	return &LoginGuard{
		cache:       database.NewCacheWithClient(client, "login:fail"),
		maxFailures: cfg.MaxFailures,
		lock:        cfg.LockDuration(),
	}
}

func guardKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Locked 是否处于锁定状态
func (g *LoginGuard) Locked(ctx context.Context, username string) bool {
	if g == nil || g.maxFailures <= 0 {
		return false
	}
	v, err := g.cache.Get(ctx, guardKey(username))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("login guard unavailable", zap.Error(err))
		}
		return false
	}
	n, _ := strconv.Atoi(v)
	return n >= g.maxFailures
}

// Fail 记录一次失败，返回累计次数
func (g *LoginGuard) Fail(ctx context.Context, username string) int64 {
	if g == nil || g.maxFailures <= 0 {
		return 0
	}
	n, err := g.cache.IncrWithExpire(ctx, guardKey(username), g.lock)
	if err != nil {
		logger.Warn("login guard unavailable", zap.Error(err))
		return 0
	}
	if n == int64(g.maxFailures) {
		logger.Warn("login locked", zap.String("username", username), zap.Duration("lock", g.lock))
	}
	return n
}

// Reset 登录成功后清除计数
func (g *LoginGuard) Reset(ctx context.Context, username string) {
	if g == nil || g.maxFailures <= 0 {
		return
	}
	if err := g.cache.Del(ctx, guardKey(username)); err != nil {
		logger.Warn("login guard unavailable", zap.Error(err))
	}
}
