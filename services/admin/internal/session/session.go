package session

import (
	"context"

	"github.com/goadmin/pkg/logger"
	"github.com/goadmin/pkg/permission"
	"go.uber.org/zap"
)

// Manager 会话生命周期事件到权限缓存的映射
//
// 登录时预热缓存；注销、删除、禁用时吊销，旧令牌在有效期内也不再放行；
// 角色或角色权限变化时失效，下一次请求从数据源重新加载。
type Manager struct {
	cache  *permission.Cache
	loader permission.Loader
}

// NewManager 创建会话管理器
func NewManager(cache *permission.Cache, loader permission.Loader) *Manager {
	return &Manager{cache: cache, loader: loader}
}

// OnLogin 登录成功：加载权限并写入缓存，同时解除之前的吊销
func (m *Manager) OnLogin(ctx context.Context, userID int64) (permission.Set, error) {
	codes, err := m.loader.LoadPermissions(ctx, userID)
	if err != nil {
		return permission.Set{}, err
	}
	m.cache.Populate(userID, codes)
	logger.Info("session started", zap.Int64("userId", userID), zap.Int("permissions", codes.Len()))
	return codes, nil
}

// OnLogout 注销
func (m *Manager) OnLogout(userID int64) {
	m.cache.Revoke(userID)
	logger.Info("session revoked", zap.Int64("userId", userID), zap.String("reason", "logout"))
}

// OnUserDeleted 用户被删除
func (m *Manager) OnUserDeleted(userID int64) {
	m.cache.Revoke(userID)
	logger.Info("session revoked", zap.Int64("userId", userID), zap.String("reason", "deleted"))
}

// OnUserDisabled 用户被禁用
func (m *Manager) OnUserDisabled(userID int64) {
	m.cache.Revoke(userID)
	logger.Info("session revoked", zap.Int64("userId", userID), zap.String("reason", "disabled"))
}

// OnUserEnabled 用户重新启用；已吊销的会话仍需重新登录
func (m *Manager) OnUserEnabled(userID int64) {
	m.cache.Invalidate(userID)
	logger.Info("permission cache invalidated", zap.Int64("userId", userID), zap.String("reason", "enabled"))
}

// OnRoleChanged 用户角色被重新分配
func (m *Manager) OnRoleChanged(userID int64) {
	m.cache.Invalidate(userID)
	logger.Info("permission cache invalidated", zap.Int64("userId", userID), zap.String("reason", "role changed"))
}

// OnRolePermissionsChanged 角色的权限或状态变化，影响该角色下所有用户
func (m *Manager) OnRolePermissionsChanged(roleID int64, userIDs []int64) {
	m.cache.InvalidateMany(userIDs)
	logger.Info("permission cache invalidated",
		zap.Int64("roleId", roleID),
		zap.Int("users", len(userIDs)),
		zap.String("reason", "role permissions changed"),
	)
}

// OnPermissionsChanged 无法确定受影响的用户时，全部快照失效；吊销状态保持不变
func (m *Manager) OnPermissionsChanged(reason string) {
	m.cache.InvalidateAll()
	logger.Warn("permission cache invalidated for all users", zap.String("reason", reason))
}

// Revoked 会话是否已吊销
func (m *Manager) Revoked(userID int64) bool {
	return m.cache.Revoked(userID)
}
