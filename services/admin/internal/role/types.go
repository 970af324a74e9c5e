package role

import (
	"github.com/goadmin/pkg/permission"
	"github.com/goadmin/services/admin/internal/model"
)

// PermissionsRequest 设置角色权限请求
type PermissionsRequest struct {
	Codes []string `json:"codes"`
}

// StatusRequest 修改角色状态请求
type StatusRequest struct {
	Status *int8 `json:"status"`
}

// RoleView 角色及其直接授予的编码
type RoleView struct {
	model.Role
	Codes []permission.Code `json:"codes"`
}
