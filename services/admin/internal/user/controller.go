package user

import (
	"context"
	"net/http"
	"strings"

	"github.com/goadmin/pkg/auth"
	"github.com/goadmin/pkg/dal"
	"github.com/goadmin/pkg/errors"
	"github.com/goadmin/pkg/logger"
	"github.com/goadmin/pkg/middleware"
	"github.com/goadmin/pkg/permission"
	"github.com/goadmin/pkg/response"
	"github.com/goadmin/pkg/router"
	"github.com/goadmin/pkg/utils"
	"github.com/goadmin/services/admin/internal/model"
	"github.com/goadmin/services/admin/internal/rbac"
	"github.com/goadmin/services/admin/internal/session"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Controller 用户控制器（融合了Service层）
//
// 每次变更先写数据库，再同步策略副本，最后发出会话事件。
type Controller struct {
	store    *rbac.Store
	mirror   rbac.PolicyMirror
	sessions *session.Manager
}

// NewController 创建用户控制器
func NewController(store *rbac.Store, mirror rbac.PolicyMirror, sessions *session.Manager) *Controller {
	if mirror == nil {
		mirror = rbac.NopMirror{}
	}
	return &Controller{store: store, mirror: mirror, sessions: sessions}
}

// Prefix 路由前缀
func (c *Controller) Prefix() string {
	return "/api/users"
}

// Routes 路由声明
func (c *Controller) Routes() []router.Route {
	return []router.Route{
		{Method: http.MethodGet, Path: "", Handler: c.List, Require: permission.Single("user:list")},
		{Method: http.MethodPost, Path: "", Handler: c.Create, Require: permission.Single("user:create")},
		{Method: http.MethodDelete, Path: "/:id", Handler: c.Delete, Require: permission.Single("user:delete")},
		{Method: http.MethodPut, Path: "/:id/status", Handler: c.UpdateStatus, Require: permission.All("user:update", "user:status")},
		{Method: http.MethodPut, Path: "/:id/role", Handler: c.AssignRole, Require: permission.Any("user:assign-role", "role:update")},
	}
}

// List 用户分页列表
func (c *Controller) List(ctx *fiber.Ctx) error {
	conditions := map[string]interface{}{}
	if roleID := ctx.QueryInt("roleId"); roleID > 0 {
		conditions["role_id"] = roleID
	}
	page, err := c.store.Users().FindPaged(ctx.UserContext(), conditions, dal.BindPagination(ctx),
		dal.WithPreload("Role"), dal.WithOrder("id asc"))
	if err != nil {
		return errors.Internal(err)
	}
	return response.Success(ctx, page)
}

// Create 创建用户
func (c *Controller) Create(ctx *fiber.Ctx) error {
	var req CreateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return response.BadRequest(ctx, "请求参数错误")
	}
	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 3 || len(req.Password) < 6 {
		return response.BadRequest(ctx, "用户名至少3位，密码至少6位")
	}
	if req.Email != "" && !utils.IsEmail(req.Email) {
		return response.BadRequest(ctx, "邮箱格式错误")
	}

	u, err := c.create(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return response.Success(ctx, u)
}

// create 创建用户业务逻辑
func (c *Controller) create(ctx context.Context, req *CreateRequest) (*model.User, error) {
	existing, err := c.store.FindUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if existing != nil {
		return nil, errors.BadRequest("用户名已存在")
	}

	var role *model.Role
	if req.RoleID > 0 {
		if role, err = c.findRole(ctx, req.RoleID); err != nil {
			return nil, err
		}
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Internal(err)
	}
	u := &model.User{
		Username: req.Username,
		Password: hashed,
		Nickname: req.Nickname,
		Email:    req.Email,
		RoleID:   req.RoleID,
		Status:   model.StatusEnabled,
	}
	if err := c.store.Users().Create(ctx, u); err != nil {
		return nil, errors.Internal(err)
	}
	if role != nil {
		if err := c.mirror.SetUserRole(u.ID, role.Code); err != nil {
			logger.Error("policy mirror set role failed", zap.Int64("userId", u.ID), zap.Error(err))
		}
	}
	return u, nil
}

// Delete 删除用户
func (c *Controller) Delete(ctx *fiber.Ctx) error {
	id, ok := dal.GetIDParam(ctx, "id")
	if !ok {
		return response.BadRequest(ctx, "无效的用户ID")
	}
	if id == middleware.GetUserID(ctx) {
		return response.BadRequest(ctx, "不能删除当前登录用户")
	}

	reqCtx := ctx.UserContext()
	if _, err := c.findUser(reqCtx, id); err != nil {
		return err
	}
	if err := c.store.Users().Delete(reqCtx, id); err != nil {
		return errors.Internal(err)
	}
	if err := c.mirror.DeleteUser(id); err != nil {
		logger.Error("policy mirror delete user failed", zap.Int64("userId", id), zap.Error(err))
	}
	c.sessions.OnUserDeleted(id)
	return response.Success(ctx, nil)
}

// UpdateStatus 启用/禁用用户
func (c *Controller) UpdateStatus(ctx *fiber.Ctx) error {
	id, ok := dal.GetIDParam(ctx, "id")
	if !ok {
		return response.BadRequest(ctx, "无效的用户ID")
	}
	var req StatusRequest
	if err := ctx.BodyParser(&req); err != nil || req.Status == nil ||
		(*req.Status != model.StatusEnabled && *req.Status != model.StatusDisabled) {
		return response.BadRequest(ctx, "状态只能为0或1")
	}

	reqCtx := ctx.UserContext()
	if _, err := c.findUser(reqCtx, id); err != nil {
		return err
	}
	if err := c.store.Users().UpdateFields(reqCtx, id, map[string]interface{}{"status": *req.Status}); err != nil {
		return errors.Internal(err)
	}

	if *req.Status == model.StatusDisabled {
		c.sessions.OnUserDisabled(id)
	} else {
		c.sessions.OnUserEnabled(id)
	}
	return response.Success(ctx, nil)
}

// AssignRole 分配角色
func (c *Controller) AssignRole(ctx *fiber.Ctx) error {
	id, ok := dal.GetIDParam(ctx, "id")
	if !ok {
		return response.BadRequest(ctx, "无效的用户ID")
	}
	var req AssignRoleRequest
	if err := ctx.BodyParser(&req); err != nil || req.RoleID <= 0 {
		return response.BadRequest(ctx, "无效的角色ID")
	}

	reqCtx := ctx.UserContext()
	if _, err := c.findUser(reqCtx, id); err != nil {
		return err
	}
	role, err := c.findRole(reqCtx, req.RoleID)
	if err != nil {
		return err
	}
	if err := c.store.Users().UpdateFields(reqCtx, id, map[string]interface{}{"role_id": role.ID}); err != nil {
		return errors.Internal(err)
	}
	if err := c.mirror.SetUserRole(id, role.Code); err != nil {
		logger.Error("policy mirror set role failed", zap.Int64("userId", id), zap.Error(err))
	}
	c.sessions.OnRoleChanged(id)
	return response.Success(ctx, nil)
}

func (c *Controller) findUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := c.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if u == nil {
		return nil, errors.NotFound("用户")
	}
	return u, nil
}

func (c *Controller) findRole(ctx context.Context, id int64) (*model.Role, error) {
	role, err := c.store.Roles().FindByID(ctx, id)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if role == nil {
		return nil, errors.NotFound("角色")
	}
	return role, nil
}
