package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/goadmin/pkg/permission"
	"gorm.io/gorm"
)

// 策略中的主体前缀与动作
const (
	userPrefix  = "user:"
	rolePrefix  = "role:"
	ActionAllow = "allow"
)

// DefaultModel 用户->角色->权限编码 的RBAC模型
const DefaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// SubjectDirectory Casbin 之外的用户目录：判断用户是否仍然有效，并提供已登记的权限编码
type SubjectDirectory interface {
	SubjectActive(ctx context.Context, userID int64) (bool, error)
	Catalog(ctx context.Context) ([]permission.Code, error)
}

// CasbinStore 以 Casbin 策略作为权限数据源
//
// 分组策略 g(user:<id>, role:<code>)，权限策略 p(role:<code>, <permission code>, allow)。
type CasbinStore struct {
	mu        sync.RWMutex
	enforcer  *casbin.Enforcer
	directory SubjectDirectory
}

// NewCasbinStore 从模型文件创建；modelPath 为空时使用 DefaultModel
func NewCasbinStore(db *gorm.DB, modelPath string, directory SubjectDirectory) (*CasbinStore, error) {
	var m model.Model
	var err error
	if modelPath == "" {
		m, err = model.NewModelFromString(DefaultModel)
	} else {
		m, err = model.NewModelFromFile(modelPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load casbin policy: %w", err)
	}

	return &CasbinStore{enforcer: enforcer, directory: directory}, nil
}

func userSubject(userID int64) string {
	return userPrefix + strconv.FormatInt(userID, 10)
}

func roleSubject(roleCode string) string {
	return rolePrefix + roleCode
}

// SetUserRole 设置用户角色(1对1)
func (s *CasbinStore) SetUserRole(userID int64, roleCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := userSubject(userID)
	if _, err := s.enforcer.DeleteRolesForUser(user); err != nil {
		return err
	}
	_, err := s.enforcer.AddGroupingPolicy(user, roleSubject(roleCode))
	return err
}

// DeleteUser 删除用户的全部角色
func (s *CasbinStore) DeleteUser(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.enforcer.DeleteRolesForUser(userSubject(userID))
	return err
}

// SetRolePermissions 设置角色权限
func (s *CasbinStore) SetRolePermissions(roleCode string, codes []permission.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role := roleSubject(roleCode)
	if _, err := s.enforcer.DeletePermissionsForUser(role); err != nil {
		return err
	}
	if len(codes) == 0 {
		return nil
	}
	rules := make([][]string, 0, len(codes))
	for _, c := range codes {
		rules = append(rules, []string{role, string(c), ActionAllow})
	}
	_, err := s.enforcer.AddPolicies(rules)
	return err
}

// UsersForRole 拥有该角色的用户ID
func (s *CasbinStore) UsersForRole(roleCode string) ([]int64, error) {
	s.mu.RLock()
	users, err := s.enforcer.GetUsersForRole(roleSubject(roleCode))
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		id, err := strconv.ParseInt(strings.TrimPrefix(u, userPrefix), 10, 64)
		if err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// LoadPermissions 实现 permission.Loader：沿角色继承收集编码并展开通配
func (s *CasbinStore) LoadPermissions(ctx context.Context, userID int64) (permission.Set, error) {
	active, err := s.directory.SubjectActive(ctx, userID)
	if err != nil {
		return permission.Set{}, err
	}
	if !active {
		return permission.Set{}, permission.ErrSubjectNotFound
	}

	s.mu.RLock()
	policies, err := s.enforcer.GetImplicitPermissionsForUser(userSubject(userID))
	s.mu.RUnlock()
	if err != nil {
		return permission.Set{}, fmt.Errorf("casbin implicit permissions: %w", err)
	}

	granted := make([]permission.Code, 0, len(policies))
	for _, p := range policies {
		if len(p) < 3 || p[2] != ActionAllow {
			continue
		}
		code, err := permission.ParseCode(p[1])
		if err != nil {
			continue
		}
		granted = append(granted, code)
	}

	catalog, err := s.directory.Catalog(ctx)
	if err != nil {
		return permission.Set{}, err
	}
	return permission.Expand(granted, catalog), nil
}
