package rbac

import (
	"context"
	"fmt"

	"github.com/goadmin/pkg/permission"
)

// PolicyMirror 外部策略副本（Casbin 数据源时为 *auth.CasbinStore）
//
// 用户和角色变更先写入数据库，再同步到副本。
type PolicyMirror interface {
	SetUserRole(userID int64, roleCode string) error
	DeleteUser(userID int64) error
	SetRolePermissions(roleCode string, codes []permission.Code) error
}

// NopMirror 数据库数据源下不需要同步
type NopMirror struct{}

// SetUserRole 不做任何操作
func (NopMirror) SetUserRole(int64, string) error {
	return nil
}

// DeleteUser 不做任何操作
func (NopMirror) DeleteUser(int64) error {
	return nil
}

// SetRolePermissions 不做任何操作
func (NopMirror) SetRolePermissions(string, []permission.Code) error {
	return nil
}

// SyncMirror 启动时把数据库中的角色权限和用户角色全量写入副本
func SyncMirror(ctx context.Context, store *Store, mirror PolicyMirror) error {
	roles, err := store.Roles().FindAll(ctx, nil)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	codeByID := make(map[int64]string, len(roles))
	for _, r := range roles {
		codeByID[r.ID] = r.Code
		var codes []permission.Code
		if r.Enabled() {
			if codes, err = store.RoleCodes(ctx, r.ID); err != nil {
				return err
			}
		}
		if err := mirror.SetRolePermissions(r.Code, codes); err != nil {
			return fmt.Errorf("mirror role %s: %w", r.Code, err)
		}
	}

	users, err := store.Users().FindAll(ctx, nil)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		code, ok := codeByID[u.RoleID]
		if !ok {
			err = mirror.DeleteUser(u.ID)
		} else {
			err = mirror.SetUserRole(u.ID, code)
		}
		if err != nil {
			return fmt.Errorf("mirror user %d: %w", u.ID, err)
		}
	}
	return nil
}
