package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/goadmin/pkg/dal"
	"github.com/goadmin/pkg/permission"
	"github.com/goadmin/pkg/utils"
	"github.com/goadmin/services/admin/internal/model"
	"gorm.io/gorm"
)

// ErrUnknownPermission 权限编码未登记
var ErrUnknownPermission = errors.New("permission code is not registered")

// Store 授权数据源：用户 -> 角色 -> 权限编码
//
// 实现 permission.Loader；同时作为 Casbin 数据源的用户目录。
type Store struct {
	db    *gorm.DB
	users *dal.BaseRepository[model.User]
	roles *dal.BaseRepository[model.Role]
	perms *dal.BaseRepository[model.Permission]
}

// NewStore 创建授权数据源
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		users: dal.NewBaseRepository[model.User](db),
		roles: dal.NewBaseRepository[model.Role](db),
		perms: dal.NewBaseRepository[model.Permission](db),
	}
}

// Users 用户仓储
func (s *Store) Users() dal.Repository[model.User] {
	return s.users
}

// Roles 角色仓储
func (s *Store) Roles() dal.Repository[model.Role] {
	return s.roles
}

// LoadPermissions 读取用户当前的权限集合，通配编码展开为已登记的具体编码
//
// 用户不存在或已禁用返回 permission.ErrSubjectNotFound；角色缺失或已禁用时返回空集合。
func (s *Store) LoadPermissions(ctx context.Context, userID int64) (permission.Set, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return permission.Set{}, fmt.Errorf("find user %d: %w", userID, err)
	}
	if user == nil || !user.Enabled() {
		return permission.Set{}, permission.ErrSubjectNotFound
	}
	if user.RoleID == 0 {
		return permission.NewSet(), nil
	}

	role, err := s.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		return permission.Set{}, fmt.Errorf("find role %d: %w", user.RoleID, err)
	}
	if role == nil || !role.Enabled() {
		return permission.NewSet(), nil
	}

	granted, err := s.RoleCodes(ctx, role.ID)
	if err != nil {
		return permission.Set{}, err
	}
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return permission.Set{}, err
	}
	return permission.Expand(granted, catalog), nil
}

// SubjectActive 用户存在且启用
func (s *Store) SubjectActive(ctx context.Context, userID int64) (bool, error) {
	user, err := s.users.FindByID(ctx, userID, dal.WithSelect("id", "status"))
	if err != nil {
		return false, fmt.Errorf("find user %d: %w", userID, err)
	}
	return user != nil && user.Enabled(), nil
}

// Catalog 已登记的全部权限编码
func (s *Store) Catalog(ctx context.Context) ([]permission.Code, error) {
	var raw []string
	if err := s.db.WithContext(ctx).Model(&model.Permission{}).Pluck("code", &raw).Error; err != nil {
		return nil, fmt.Errorf("list permission codes: %w", err)
	}
	return parseCodes(raw), nil
}

// RoleCodes 角色直接授予的编码（未展开）
func (s *Store) RoleCodes(ctx context.Context, roleID int64) ([]permission.Code, error) {
	var raw []string
	err := s.db.WithContext(ctx).Model(&model.Permission{}).
		Joins("JOIN sys_role_permission rp ON rp.permission_id = sys_permission.id").
		Where("rp.role_id = ?", roleID).
		Pluck("sys_permission.code", &raw).Error
	if err != nil {
		return nil, fmt.Errorf("list codes of role %d: %w", roleID, err)
	}
	return parseCodes(raw), nil
}

// parseCodes 跳过库中格式不合法的编码
func parseCodes(raw []string) []permission.Code {
	codes := make([]permission.Code, 0, len(raw))
	for _, r := range raw {
		if c, err := permission.ParseCode(r); err == nil {
			codes = append(codes, c)
		}
	}
	return codes
}

// SetRolePermissions 替换角色的权限编码
func (s *Store) SetRolePermissions(ctx context.Context, roleID int64, codes []permission.Code) error {
	raw := make([]string, len(codes))
	for i, c := range codes {
		raw[i] = string(c)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var perms []model.Permission
		if len(raw) > 0 {
			if err := tx.Where("code IN ?", raw).Find(&perms).Error; err != nil {
				return err
			}
		}
		if len(perms) != len(utils.Unique(raw)) {
			return ErrUnknownPermission
		}

		if err := tx.Where("role_id = ?", roleID).Delete(&model.RolePermission{}).Error; err != nil {
			return err
		}
		if len(perms) == 0 {
			return nil
		}
		links := make([]model.RolePermission, len(perms))
		for i, p := range perms {
			links[i] = model.RolePermission{RoleID: roleID, PermissionID: p.ID}
		}
		return tx.Create(&links).Error
	})
}

// UserIDsWithRole 拥有该角色的用户
func (s *Store) UserIDsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&model.User{}).Where("role_id = ?", roleID).Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list users of role %d: %w", roleID, err)
	}
	return ids, nil
}

// FindUserByUsername 根据用户名查找
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.users.FindOne(ctx, map[string]interface{}{"username": username}, dal.WithPreload("Role"))
}
