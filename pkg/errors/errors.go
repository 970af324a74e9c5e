package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// 鉴权错误分类，中间件是唯一把内部错误翻译成这些值的地方
var (
	// ErrMissingCredentials 未携带令牌
	ErrMissingCredentials = New(http.StatusUnauthorized, "未提供认证令牌")
	// ErrInvalidCredentials 令牌无效、过期，或主体已不存在；对调用方不区分具体原因
	ErrInvalidCredentials = New(http.StatusUnauthorized, "认证令牌无效，请重新登录")
	// ErrPermissionDenied 身份有效但权限不足
	ErrPermissionDenied = New(http.StatusForbidden, "没有访问权限")
	// ErrAuthorizationStoreUnavailable 权限数据源查询失败，按拒绝处理
	ErrAuthorizationStoreUnavailable = New(http.StatusServiceUnavailable, "权限服务暂不可用，请稍后重试")
)

// 通用错误
var (
	ErrBadRequest     = New(http.StatusBadRequest, "请求错误")
	ErrNotFound       = New(http.StatusNotFound, "资源不存在")
	ErrInternalServer = New(http.StatusInternalServerError, "服务器内部错误")
	ErrLoginFailed    = New(http.StatusUnauthorized, "用户名或密码错误")
	ErrLoginLocked    = New(http.StatusTooManyRequests, "登录失败次数过多，请稍后重试")
	ErrUserDisabled   = New(http.StatusForbidden, "用户已被禁用")
	ErrTooManyRequest = New(http.StatusTooManyRequests, "请求过于频繁，请稍后重试")
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 解包错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 同码同消息视为同一错误，使 Wrap 后的值仍能匹配分类哨兵
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New 创建新错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 以分类错误包装底层原因，原因只进日志不进响应
func Wrap(kind *AppError, cause error) *AppError {
	return &AppError{
		Code:    kind.Code,
		Message: kind.Message,
		Err:     cause,
	}
}

// Is 检查是否为指定错误
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 类型转换错误
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetCode 获取错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// GetMessage 获取错误消息
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// BadRequest 创建请求错误
func BadRequest(message string) *AppError {
	return New(http.StatusBadRequest, message)
}

// NotFound 创建未找到错误
func NotFound(resource string) *AppError {
	return New(http.StatusNotFound, fmt.Sprintf("%s不存在", resource))
}

// Internal 创建内部错误
func Internal(cause error) *AppError {
	return Wrap(ErrInternalServer, cause)
}
