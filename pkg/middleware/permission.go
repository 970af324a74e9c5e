package middleware

import (
	"github.com/goadmin/pkg/errors"
	"github.com/goadmin/pkg/logger"
	"github.com/goadmin/pkg/permission"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Authorizer 基于权限缓存的路由鉴权
type Authorizer struct {
	cache   *permission.Cache
	loader  permission.Loader
	metrics *permission.Metrics
}

// NewAuthorizer 创建鉴权器，metrics 可为 nil
func NewAuthorizer(cache *permission.Cache, loader permission.Loader, metrics *permission.Metrics) *Authorizer {
	return &Authorizer{cache: cache, loader: loader, metrics: metrics}
}

// Permissions 取主体当前权限集合（经缓存）
func (a *Authorizer) Permissions(c *fiber.Ctx, subjectID int64) (permission.Set, error) {
	return a.cache.GetOrLoad(c.UserContext(), subjectID, a.loader)
}

// Require 权限中间件，必须挂在 Identity 之后
//
// 主体已被删除、禁用或已注销时返回 InvalidCredentials；权限数据源不可用时拒绝请求
// 并返回 AuthorizationStoreUnavailable；要求不满足返回 PermissionDenied。
func (a *Authorizer) Require(req permission.Requirement) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject, ok := SubjectFromContext(c)
		if !ok {
			logger.Error("permission check without identity",
				zap.String("path", c.Path()),
				zap.Stringer("requirement", req),
			)
			a.metrics.ObserveDecision(permission.DecisionError)
			return abort(c, errors.ErrInternalServer)
		}

		codes, err := a.Permissions(c, subject.ID)
		if err != nil {
			a.metrics.ObserveDecision(permission.DecisionError)
			appErr := LoadError(err)
			if appErr == errors.ErrInvalidCredentials {
				logger.Info("subject no longer valid",
					zap.Int64("userId", subject.ID),
					zap.String("path", c.Path()),
					zap.Error(err),
				)
			} else {
				logger.Error("permission store unavailable",
					zap.Int64("userId", subject.ID),
					zap.String("path", c.Path()),
					zap.Error(err),
				)
			}
			return abort(c, appErr)
		}

		if !req.Evaluate(codes) {
			a.metrics.ObserveDecision(permission.DecisionDenied)
			logger.Info("permission denied",
				zap.Int64("userId", subject.ID),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Stringer("requirement", req),
			)
			return abort(c, errors.ErrPermissionDenied)
		}

		a.metrics.ObserveDecision(permission.DecisionGranted)
		c.Locals(LocalsPermissions, codes)
		return c.Next()
	}
}

// LoadError 把权限加载错误翻译为对外错误：主体失效要求重新登录，其余一律按数据源不可用拒绝
func LoadError(err error) *errors.AppError {
	if errors.Is(err, permission.ErrSubjectNotFound) || errors.Is(err, permission.ErrSubjectRevoked) {
		return errors.ErrInvalidCredentials
	}
	return errors.ErrAuthorizationStoreUnavailable
}

// GetPermissions 从上下文获取本次请求使用的权限集合
func GetPermissions(c *fiber.Ctx) permission.Set {
	codes, _ := c.Locals(LocalsPermissions).(permission.Set)
	return codes
}
