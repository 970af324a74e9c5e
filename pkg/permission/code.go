package permission

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Code 权限编码，形如 "user:list"、"role:update"
//
// 存储层可以使用 "user:*" 或 "*" 这样的通配编码，但在进入缓存之前由 Loader
// 展开为具体编码；路由上声明的要求只能使用具体编码。
type Code string

// Wildcard 超级权限编码
const Wildcard Code = "*"

var codePattern = regexp.MustCompile(`^(\*|[a-z0-9_-]+(:[a-z0-9_-]+)*:([a-z0-9_-]+|\*))$`)

// ParseCode 校验并返回权限编码
func ParseCode(s string) (Code, error) {
	if !codePattern.MatchString(s) {
		return "", fmt.Errorf("invalid permission code %q", s)
	}
	return Code(s), nil
}

// MustCode 校验失败时panic，用于注册期常量
func MustCode(s string) Code {
	c, err := ParseCode(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Valid 是否符合编码格式
func (c Code) Valid() bool {
	return codePattern.MatchString(string(c))
}

// IsWildcard 是否通配编码
func (c Code) IsWildcard() bool {
	return c == Wildcard || strings.HasSuffix(string(c), ":*")
}

// Covers 通配编码是否覆盖给定的具体编码，仅供 Loader 展开使用
func (c Code) Covers(other Code) bool {
	switch {
	case c == Wildcard:
		return true
	case c.IsWildcard():
		return strings.HasPrefix(string(other), strings.TrimSuffix(string(c), "*"))
	default:
		return c == other
	}
}

// Set 不可变的权限编码集合，可在多个 goroutine 间共享
type Set struct {
	m map[Code]struct{}
}

// NewSet 创建集合，重复编码会被合并
func NewSet(codes ...Code) Set {
	m := make(map[Code]struct{}, len(codes))
	for _, c := range codes {
		m[c] = struct{}{}
	}
	return Set{m: m}
}

// SetOf 由字符串构造集合
func SetOf(codes ...string) Set {
	m := make(map[Code]struct{}, len(codes))
	for _, c := range codes {
		m[Code(c)] = struct{}{}
	}
	return Set{m: m}
}

// Has 是否包含编码
func (s Set) Has(c Code) bool {
	_, ok := s.m[c]
	return ok
}

// Len 集合大小
func (s Set) Len() int {
	return len(s.m)
}

// Codes 排序后的编码列表
func (s Set) Codes() []Code {
	out := make([]Code, 0, len(s.m))
	for c := range s.m {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Strings 排序后的字符串列表
func (s Set) Strings() []string {
	codes := s.Codes()
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}

// Equal 集合是否相等
func (s Set) Equal(other Set) bool {
	if len(s.m) != len(other.m) {
		return false
	}
	for c := range s.m {
		if !other.Has(c) {
			return false
		}
	}
	return true
}
