package role

import (
	"context"
	"net/http"

	"github.com/goadmin/pkg/dal"
	"github.com/goadmin/pkg/errors"
	"github.com/goadmin/pkg/logger"
	"github.com/goadmin/pkg/permission"
	"github.com/goadmin/pkg/response"
	"github.com/goadmin/pkg/router"
	"github.com/goadmin/services/admin/internal/model"
	"github.com/goadmin/services/admin/internal/rbac"
	"github.com/goadmin/services/admin/internal/session"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Controller 角色控制器
type Controller struct {
	store    *rbac.Store
	mirror   rbac.PolicyMirror
	sessions *session.Manager
}

// NewController 创建角色控制器
func NewController(store *rbac.Store, mirror rbac.PolicyMirror, sessions *session.Manager) *Controller {
	if mirror == nil {
		mirror = rbac.NopMirror{}
	}
	return &Controller{store: store, mirror: mirror, sessions: sessions}
}

// Prefix 路由前缀
func (c *Controller) Prefix() string {
	return "/api/roles"
}

// Routes 路由声明
func (c *Controller) Routes() []router.Route {
	return []router.Route{
		{Method: http.MethodGet, Path: "", Handler: c.List, Require: permission.Single("role:list")},
		{Method: http.MethodPut, Path: "/:id/permissions", Handler: c.SetPermissions, Require: permission.Single("role:update")},
		{Method: http.MethodPut, Path: "/:id/status", Handler: c.UpdateStatus, Require: permission.Single("role:update")},
	}
}

// List 角色列表
func (c *Controller) List(ctx *fiber.Ctx) error {
	reqCtx := ctx.UserContext()
	roles, err := c.store.Roles().FindAll(reqCtx, nil, dal.WithOrder("sort asc"))
	if err != nil {
		return errors.Internal(err)
	}

	views := make([]RoleView, 0, len(roles))
	for _, r := range roles {
		codes, err := c.store.RoleCodes(reqCtx, r.ID)
		if err != nil {
			return errors.Internal(err)
		}
		views = append(views, RoleView{Role: r, Codes: codes})
	}
	return response.Success(ctx, views)
}

// SetPermissions 替换角色权限，角色下所有用户的缓存失效
func (c *Controller) SetPermissions(ctx *fiber.Ctx) error {
	id, ok := dal.GetIDParam(ctx, "id")
	if !ok {
		return response.BadRequest(ctx, "无效的角色ID")
	}
	var req PermissionsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return response.BadRequest(ctx, "请求参数错误")
	}
	codes := make([]permission.Code, 0, len(req.Codes))
	for _, raw := range req.Codes {
		code, err := permission.ParseCode(raw)
		if err != nil {
			return response.BadRequest(ctx, "无效的权限编码: "+raw)
		}
		codes = append(codes, code)
	}

	reqCtx := ctx.UserContext()
	role, err := c.findRole(reqCtx, id)
	if err != nil {
		return err
	}
	if err := c.store.SetRolePermissions(reqCtx, id, codes); err != nil {
		if errors.Is(err, rbac.ErrUnknownPermission) {
			return response.BadRequest(ctx, "存在未登记的权限编码")
		}
		return errors.Internal(err)
	}
	c.mirrorRole(role, codes)
	return c.invalidateMembers(ctx, id)
}

// UpdateStatus 启用/禁用角色
func (c *Controller) UpdateStatus(ctx *fiber.Ctx) error {
	id, ok := dal.GetIDParam(ctx, "id")
	if !ok {
		return response.BadRequest(ctx, "无效的角色ID")
	}
	var req StatusRequest
	if err := ctx.BodyParser(&req); err != nil || req.Status == nil ||
		(*req.Status != model.StatusEnabled && *req.Status != model.StatusDisabled) {
		return response.BadRequest(ctx, "状态只能为0或1")
	}

	reqCtx := ctx.UserContext()
	role, err := c.findRole(reqCtx, id)
	if err != nil {
		return err
	}
	if err := c.store.Roles().UpdateFields(reqCtx, id, map[string]interface{}{"status": *req.Status}); err != nil {
		return errors.Internal(err)
	}

	role.Status = *req.Status

	var codes []permission.Code
	if role.Enabled() {
		if codes, err = c.store.RoleCodes(reqCtx, id); err != nil {
			logger.Error("load role codes failed", zap.Int64("roleId", id), zap.Error(err))
			codes = nil
		}
	}
	c.mirrorRole(role, codes)
	return c.invalidateMembers(ctx, id)
}

// mirrorRole 同步角色授予到策略副本，禁用的角色不授予任何编码
func (c *Controller) mirrorRole(role *model.Role, codes []permission.Code) {
	if !role.Enabled() {
		codes = nil
	}
	if err := c.mirror.SetRolePermissions(role.Code, codes); err != nil {
		logger.Error("policy mirror set permissions failed", zap.String("role", role.Code), zap.Error(err))
	}
}

// invalidateMembers 角色变更已提交，查不到成员时退化为全部失效
func (c *Controller) invalidateMembers(ctx *fiber.Ctx, roleID int64) error {
	userIDs, err := c.store.UserIDsWithRole(ctx.UserContext(), roleID)
	if err != nil {
		logger.Error("list role members failed", zap.Int64("roleId", roleID), zap.Error(err))
		c.sessions.OnPermissionsChanged("role members unknown")
		return response.Success(ctx, nil)
	}
	c.sessions.OnRolePermissionsChanged(roleID, userIDs)
	return response.Success(ctx, nil)
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
