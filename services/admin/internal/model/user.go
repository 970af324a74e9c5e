package model

import (
	"github.com/goadmin/pkg/dal"
)

// 启用状态
const (
	StatusDisabled int8 = 0
	StatusEnabled  int8 = 1
)

// User 用户模型
type User struct {
	dal.Model
	Username string `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Password string `gorm:"size:255;not null" json:"-"`
	Nickname string `gorm:"size:50" json:"nickname"`
	Email    string `gorm:"size:100" json:"email"`
	Status   int8   `gorm:"default:1" json:"status"` // 1:正常 0:禁用
	RoleID   int64  `gorm:"index" json:"roleId"`
	Role     *Role  `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

// TableName 表名
func (User) TableName() string {
	return "sys_user"
}

// Enabled 是否启用
func (u *User) Enabled() bool {
	return u.Status == StatusEnabled
}
