package model

import (
	"github.com/goadmin/pkg/dal"
)

// Role 角色模型
type Role struct {
	dal.Model
	Name        string `gorm:"size:50;not null" json:"name"`
	Code        string `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Status      int8   `gorm:"default:1" json:"status"`
	Sort        int    `gorm:"default:0" json:"sort"`
	Description string `gorm:"size:255" json:"description"`
}

// TableName 表名
func (Role) TableName() string {
	return "sys_role"
}

// Enabled 是否启用
func (r *Role) Enabled() bool {
	return r.Status == StatusEnabled
}
