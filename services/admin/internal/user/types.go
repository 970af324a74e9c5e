package user

// CreateRequest 创建用户请求
type CreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	RoleID   int64  `json:"roleId"`
}

// StatusRequest 修改状态请求
type StatusRequest struct {
	Status *int8 `json:"status"`
}

// AssignRoleRequest 分配角色请求
type AssignRoleRequest struct {
	RoleID int64 `json:"roleId"`
}
