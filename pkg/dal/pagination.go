package dal

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// 分页默认值
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Pagination 分页参数
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// NewPagination 创建分页参数并修正越界值
func NewPagination(page, pageSize int) *Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Pagination{Page: page, PageSize: pageSize}
}

// BindPagination 从查询参数 page/pageSize 读取分页
func BindPagination(c *fiber.Ctx) *Pagination {
	return NewPagination(c.QueryInt("page", 1), c.QueryInt("pageSize", DefaultPageSize))
}

// Offset 偏移量
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PagedResult 分页结果
type PagedResult[T any] struct {
	List     []T   `json:"list"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

// NewPagedResult 创建分页结果
func NewPagedResult[T any](list []T, total int64, p *Pagination) *PagedResult[T] {
	if list == nil {
		list = []T{}
	}
	return &PagedResult[T]{List: list, Total: total, Page: p.Page, PageSize: p.PageSize}
}

// ParseInt64ID 解析路径中的 ID
func ParseInt64ID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GetIDParam 读取路径参数中的 ID
func GetIDParam(c *fiber.Ctx, name string) (int64, bool) {
	return ParseInt64ID(c.Params(name))
}
