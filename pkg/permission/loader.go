package permission

import (
	"context"
	"errors"
)

// ErrSubjectNotFound 数据源中已不存在（或已禁用）该主体，调用方应要求重新登录
var ErrSubjectNotFound = errors.New("permission: subject not found")

// ErrSubjectRevoked 主体已被显式撤销（登出、删除、禁用），在下一次登录前不再重新加载
var ErrSubjectRevoked = errors.New("permission: subject revoked")

// Loader 权限数据源
//
// 返回已展开的有效权限集合。空集合是合法结果；查询失败必须返回错误，
// 主体不存在时返回 ErrSubjectNotFound。
type Loader interface {
	LoadPermissions(ctx context.Context, subjectID int64) (Set, error)
}

// LoaderFunc 函数适配器
type LoaderFunc func(ctx context.Context, subjectID int64) (Set, error)

// LoadPermissions 实现 Loader
func (f LoaderFunc) LoadPermissions(ctx context.Context, subjectID int64) (Set, error) {
	return f(ctx, subjectID)
}
