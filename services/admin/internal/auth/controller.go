package auth

import (
	"net/http"
	"strings"

	pkgAuth "github.com/goadmin/pkg/auth"
	"github.com/goadmin/pkg/dal"
	"github.com/goadmin/pkg/errors"
	"github.com/goadmin/pkg/logger"
	"github.com/goadmin/pkg/middleware"
	"github.com/goadmin/pkg/response"
	"github.com/goadmin/pkg/router"
	"github.com/goadmin/services/admin/internal/model"
	"github.com/goadmin/services/admin/internal/rbac"
	"github.com/goadmin/services/admin/internal/session"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Controller 认证控制器
type Controller struct {
	store      *rbac.Store
	jwtManager *pkgAuth.JWTManager
	sessions   *session.Manager
	authorizer *middleware.Authorizer
	guard      *LoginGuard
	limiter    *middleware.RateLimiter
}

// NewController 创建认证控制器；guard、limiter 可为 nil
func NewController(store *rbac.Store, jwtManager *pkgAuth.JWTManager, sessions *session.Manager,
	authorizer *middleware.Authorizer, guard *LoginGuard, limiter *middleware.RateLimiter) *Controller {
	return &Controller{
		store:      store,
		jwtManager: jwtManager,
		sessions:   sessions,
		authorizer: authorizer,
		guard:      guard,
		limiter:    limiter,
	}
}

// Prefix 路由前缀
func (c *Controller) Prefix() string {
	return "/api/auth"
}

// Routes 路由声明
func (c *Controller) Routes() []router.Route {
	var loginMiddlewares []fiber.Handler
	if c.limiter != nil {
		loginMiddlewares = append(loginMiddlewares, c.limiter.Middleware())
	}
	return []router.Route{
		{Method: http.MethodPost, Path: "/login", Handler: c.Login, Public: true, Middlewares: loginMiddlewares},
		{Method: http.MethodPost, Path: "/logout", Handler: c.Logout},
		{Method: http.MethodPost, Path: "/refresh", Handler: c.Refresh},
		{Method: http.MethodGet, Path: "/profile", Handler: c.Profile},
	}
}

// Login 登录
func (c *Controller) Login(ctx *fiber.Ctx) error {
	var req LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return response.BadRequest(ctx, "请求参数错误")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return response.BadRequest(ctx, "用户名和密码不能为空")
	}

	reqCtx := ctx.UserContext()
	if c.guard.Locked(reqCtx, req.Username) {
		return errors.ErrLoginLocked
	}

	u, err := c.store.FindUserByUsername(reqCtx, req.Username)
	if err != nil {
		return errors.Wrap(errors.ErrAuthorizationStoreUnavailable, err)
	}
	if u == nil || !pkgAuth.CheckPassword(req.Password, u.Password) {
		c.guard.Fail(reqCtx, req.Username)
		logger.Info("login failed", zap.String("username", req.Username), zap.String("ip", ctx.IP()))
		return errors.ErrLoginFailed
	}
	if !u.Enabled() {
		return errors.ErrUserDisabled
	}
	c.guard.Reset(reqCtx, req.Username)

	codes, err := c.sessions.OnLogin(reqCtx, u.ID)
	if err != nil {
		return middleware.LoadError(err)
	}

	token, err := c.jwtManager.CreateTokenInfo(u.ID, u.Username)
	if err != nil {
		return errors.Internal(err)
	}

	return response.Success(ctx, &LoginResponse{
		Token:    token,
		UserInfo: userInfo(u, codes.Strings()),
	})
}

// Logout 注销：该用户已签发且未过期的令牌全部失效，直到再次登录
func (c *Controller) Logout(ctx *fiber.Ctx) error {
	c.sessions.OnLogout(middleware.GetUserID(ctx))
	return response.Success(ctx, nil)
}

// Refresh 用仍然有效的令牌换取新令牌
func (c *Controller) Refresh(ctx *fiber.Ctx) error {
	subject, ok := middleware.SubjectFromContext(ctx)
	if !ok {
		return errors.ErrInvalidCredentials
	}
	if c.sessions.Revoked(subject.ID) {
		return errors.ErrInvalidCredentials
	}

	active, err := c.store.SubjectActive(ctx.UserContext(), subject.ID)
	if err != nil {
		return errors.Wrap(errors.ErrAuthorizationStoreUnavailable, err)
	}
	if !active {
		return errors.ErrInvalidCredentials
	}

	token, err := c.jwtManager.CreateTokenInfo(subject.ID, subject.Name)
	if err != nil {
		return errors.Internal(err)
	}
	return response.Success(ctx, token)
}

// Profile 当前用户信息及权限编码
func (c *Controller) Profile(ctx *fiber.Ctx) error {
	subject, ok := middleware.SubjectFromContext(ctx)
	if !ok {
		return errors.ErrInvalidCredentials
	}

	codes, err := c.authorizer.Permissions(ctx, subject.ID)
	if err != nil {
		return middleware.LoadError(err)
	}

	u, err := c.store.Users().FindByID(ctx.UserContext(), subject.ID, dal.WithPreload("Role"))
	if err != nil {
		return errors.Wrap(errors.ErrAuthorizationStoreUnavailable, err)
	}
	if u == nil {
		return errors.ErrInvalidCredentials
	}
	return response.Success(ctx, userInfo(u, codes.Strings()))
}

func userInfo(u *model.User, codes []string) *UserInfo {
	info := &UserInfo{
		ID:          u.ID,
		Username:    u.Username,
		Nickname:    u.Nickname,
		Email:       u.Email,
		RoleID:      u.RoleID,
		Permissions: codes,
	}
	if u.Role != nil {
		info.RoleCode = u.Role.Code
	}
	return info
}
