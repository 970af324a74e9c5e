package permission

import (
	"fmt"
	"strings"
)

// Kind 权限要求的组合方式
type Kind uint8

const (
	KindSingle Kind = iota + 1
	KindAny
	KindAll
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindAny:
		return "any"
	case KindAll:
		return "all"
	default:
		return "unknown"
	}
}

// Requirement 路由声明的权限要求，注册后不可变
type Requirement struct {
	kind  Kind
	codes []Code
}

// NewRequirement 校验并构造权限要求
func NewRequirement(kind Kind, codes ...Code) (Requirement, error) {
	switch kind {
	case KindSingle:
		if len(codes) != 1 {
			return Requirement{}, fmt.Errorf("single requirement takes exactly one code, got %d", len(codes))
		}
	case KindAny, KindAll:
		if len(codes) == 0 {
			return Requirement{}, fmt.Errorf("%s requirement needs at least one code", kind)
		}
	default:
		return Requirement{}, fmt.Errorf("unknown requirement kind %d", kind)
	}

	seen := make(map[Code]struct{}, len(codes))
	for _, c := range codes {
		if !c.Valid() {
			return Requirement{}, fmt.Errorf("invalid permission code %q", c)
		}
		if c.IsWildcard() {
			return Requirement{}, fmt.Errorf("wildcard code %q cannot be required by a route", c)
		}
		if _, dup := seen[c]; dup {
			return Requirement{}, fmt.Errorf("duplicate permission code %q", c)
		}
		seen[c] = struct{}{}
	}

	return Requirement{kind: kind, codes: append([]Code(nil), codes...)}, nil
}

func mustRequirement(kind Kind, codes ...Code) Requirement {
	r, err := NewRequirement(kind, codes...)
	if err != nil {
		panic(err)
	}
	return r
}

// Single 需要某一个权限
func Single(code Code) Requirement {
	return mustRequirement(KindSingle, code)
}

// Any 满足任意一个权限即可
func Any(codes ...Code) Requirement {
	return mustRequirement(KindAny, codes...)
}

// All 需要同时具备全部权限
func All(codes ...Code) Requirement {
	return mustRequirement(KindAll, codes...)
}

// Kind 组合方式
func (r Requirement) Kind() Kind {
	return r.kind
}

// Codes 声明的编码（副本）
func (r Requirement) Codes() []Code {
	return append([]Code(nil), r.codes...)
}

// IsZero 是否为空要求（未声明）
func (r Requirement) IsZero() bool {
	return r.kind == 0
}

// Evaluate 对主体权限集合求值，纯函数
func (r Requirement) Evaluate(perms Set) bool {
	switch r.kind {
	case KindSingle:
		return perms.Has(r.codes[0])
	case KindAny:
		for _, c := range r.codes {
			if perms.Has(c) {
				return true
			}
		}
		return false
	case KindAll:
		for _, c := range r.codes {
			if !perms.Has(c) {
				return false
			}
		}
		return true
	default:
		// 零值要求不放行
		return false
	}
}

func (r Requirement) String() string {
	parts := make([]string, len(r.codes))
	for i, c := range r.codes {
		parts[i] = string(c)
	}
	return fmt.Sprintf("%s(%s)", r.kind, strings.Join(parts, ","))
}
