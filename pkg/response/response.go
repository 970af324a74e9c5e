package response

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// 响应码定义
const (
	CodeSuccess = 0
	CodeError   = 1
)

// MsgSuccess 成功消息
const MsgSuccess = "success"

// Success 成功响应
func Success(c *fiber.Ctx, data interface{}) error {
	return c.Status(http.StatusOK).JSON(Response{
		Code:    CodeSuccess,
		Message: MsgSuccess,
		Data:    data,
	})
}

// SuccessWithMessage 成功响应(带消息)
func SuccessWithMessage(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(http.StatusOK).JSON(Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Abort 以指定HTTP状态码中止请求，业务码与状态码一致
func Abort(c *fiber.Ctx, httpCode int, message string) error {
	return c.Status(httpCode).JSON(Response{
		Code:    httpCode,
		Message: message,
	})
}

// BadRequest 请求错误
func BadRequest(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusBadRequest).JSON(Response{
		Code:    CodeError,
		Message: message,
	})
}
