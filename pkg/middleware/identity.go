package middleware

import (
	"strings"

	"github.com/goadmin/pkg/auth"
	"github.com/goadmin/pkg/errors"
	"github.com/goadmin/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TokenVerifier 令牌校验
type TokenVerifier interface {
	Verify(token string) (*auth.Subject, error)
}

// BearerToken 提取 Authorization 头中的 Bearer 令牌
func BearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Identity 身份认证中间件
//
// 未携带令牌返回 MissingCredentials；令牌格式错误、签名错误或已过期统一返回
// InvalidCredentials，具体原因只进日志。通过后主体写入上下文。
func Identity(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return abort(c, errors.ErrMissingCredentials)
		}

		subject, err := verifier.Verify(token)
		if err != nil {
			logger.Debug("token rejected",
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
				zap.Error(err),
			)
			return abort(c, errors.ErrInvalidCredentials)
		}

		c.Locals(LocalsSubject, subject)
		c.Locals(LocalsUserID, subject.ID)
		c.Locals(LocalsUsername, subject.Name)
		return c.Next()
	}
}

// SubjectFromContext 获取已认证的主体
func SubjectFromContext(c *fiber.Ctx) (*auth.Subject, bool) {
	subject, ok := c.Locals(LocalsSubject).(*auth.Subject)
	return subject, ok && subject != nil
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(LocalsUserID).(int64)
	return id
}

// GetUsername 从上下文获取用户名
func GetUsername(c *fiber.Ctx) string {
	name, _ := c.Locals(LocalsUsername).(string)
	return name
}
