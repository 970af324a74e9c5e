package rbac

import (
	"context"
	"fmt"

	"github.com/goadmin/pkg/auth"
	"github.com/goadmin/pkg/permission"
	"github.com/goadmin/services/admin/internal/model"
	"gorm.io/gorm"
)

// Catalog 内置权限编码
var Catalog = []model.Permission{
	{Name: "全部权限", Code: string(permission.Wildcard)},
	{Name: "用户管理", Code: "user:*"},
	{Name: "用户列表", Code: "user:list"},
	{Name: "新增用户", Code: "user:create"},
	{Name: "修改用户", Code: "user:update"},
	{Name: "启用/禁用用户", Code: "user:status"},
	{Name: "删除用户", Code: "user:delete"},
	{Name: "分配角色", Code: "user:assign-role"},
	{Name: "角色管理", Code: "role:*"},
	{Name: "角色列表", Code: "role:list"},
	{Name: "修改角色", Code: "role:update"},
}

// 内置角色
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// Seed 初始化权限编码、内置角色和管理员账号，可重复执行
func Seed(ctx context.Context, db *gorm.DB, adminPassword string) error {
	if err := db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store := NewStore(db)
	for _, p := range Catalog {
		p := p
		if err := db.WithContext(ctx).Where(model.Permission{Code: p.Code}).FirstOrCreate(&p).Error; err != nil {
			return fmt.Errorf("seed permission %s: %w", p.Code, err)
		}
	}

	roles := []struct {
		role  model.Role
		codes []permission.Code
	}{
		{model.Role{Name: "超级管理员", Code: RoleAdmin, Sort: 1}, []permission.Code{permission.Wildcard}},
		{model.Role{Name: "只读用户", Code: RoleViewer, Sort: 2}, []permission.Code{"user:list", "role:list"}},
	}
	var adminRoleID int64
	for _, r := range roles {
		role, err := store.Roles().FindOne(ctx, map[string]interface{}{"code": r.role.Code})
		if err != nil {
			return fmt.Errorf("seed role %s: %w", r.role.Code, err)
		}
		if role == nil {
			role = &r.role
			if err := store.Roles().Create(ctx, role); err != nil {
				return fmt.Errorf("seed role %s: %w", role.Code, err)
			}
			if err := store.SetRolePermissions(ctx, role.ID, r.codes); err != nil {
				return fmt.Errorf("seed role %s permissions: %w", role.Code, err)
			}
		}
		if role.Code == RoleAdmin {
			adminRoleID = role.ID
		}
	}

	if adminPassword == "" {
		return nil
	}
	existing, err := store.FindUserByUsername(ctx, "admin")
	if err != nil || existing != nil {
		return err
	}
	hashed, err := auth.HashPassword(adminPassword)
	if err != nil {
		return err
	}
	return store.Users().Create(ctx, &model.User{
		Username: "admin",
		Password: hashed,
		Nickname: "管理员",
		Status:   model.StatusEnabled,
		RoleID:   adminRoleID,
	})
}
