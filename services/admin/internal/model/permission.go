package model

import (
	"github.com/goadmin/pkg/dal"
)

// Permission 权限编码登记，如 user:list、user:*
type Permission struct {
	dal.Model
	Name        string `gorm:"size:50;not null" json:"name"`
	Code        string `gorm:"size:100;uniqueIndex;not null" json:"code"`
	Description string `gorm:"size:255" json:"description"`
}

// TableName 表名
func (Permission) TableName() string {
	return "sys_permission"
}

// RolePermission 角色权限关联
type RolePermission struct {
	ID           int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RoleID       int64 `gorm:"uniqueIndex:idx_role_perm;not null" json:"roleId"`
	PermissionID int64 `gorm:"uniqueIndex:idx_role_perm;not null" json:"permissionId"`
}

// TableName 表名
func (RolePermission) TableName() string {
	return "sys_role_permission"
}

// All 需要迁移的模型
func All() []interface{} {
	return []interface{}{&User{}, &Role{}, &Permission{}, &RolePermission{}}
}
