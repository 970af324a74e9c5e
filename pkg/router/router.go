package router

import (
	"fmt"
	"strings"

	"github.com/goadmin/pkg/middleware"
	"github.com/goadmin/pkg/permission"
	"github.com/gofiber/fiber/v2"
)

// Route 路由声明
//
// Public 路由不经过身份认证；其余路由先经过 Identity，Require 非零值时再经过权限校验，
// 零值表示只要求登录。处理函数本身不包含任何鉴权代码。
type Route struct {
	Method      string                 // HTTP方法
	Path        string                 // 路径，以前缀开头时视为完整路径，否则相对于前缀
	Handler     fiber.Handler          // 处理函数
	Public      bool                   // 公开路由
	Require     permission.Requirement // 权限要求
	Middlewares []fiber.Handler        // 路由级中间件，位于鉴权之后
}

// Registrar 路由注册器接口
type Registrar interface {
	// Prefix 返回路由前缀
	Prefix() string
	// Routes 返回路由声明列表
	Routes() []Route
}

// Guard 路由鉴权组件
type Guard struct {
	Identity   fiber.Handler
	Authorizer *middleware.Authorizer
}

// Register 注册路由；声明不合法时 panic，启动阶段即可暴露
func Register(app fiber.Router, guard Guard, controllers ...Registrar) {
	for _, ctrl := range controllers {
		prefix := ctrl.Prefix()
		g := app.Group(prefix)

		for _, route := range ctrl.Routes() {
			handlers := Chain(guard, route)
			if prefix != "" && strings.HasPrefix(route.Path, prefix) {
				app.Add(route.Method, route.Path, handlers...)
			} else {
				g.Add(route.Method, route.Path, handlers...)
			}
		}
	}
}

// Chain 构建处理器链: Identity -> 权限校验 -> 路由中间件 -> 处理函数
func Chain(guard Guard, route Route) []fiber.Handler {
	if err := route.validate(guard); err != nil {
		panic(err)
	}

	handlers := make([]fiber.Handler, 0, len(route.Middlewares)+3)
	if !route.Public {
		handlers = append(handlers, guard.Identity)
		if !route.Require.IsZero() {
			handlers = append(handlers, guard.Authorizer.Require(route.Require))
		}
	}
	handlers = append(handlers, route.Middlewares...)
	return append(handlers, route.Handler)
}

func (r Route) validate(guard Guard) error {
	name := r.Method + " " + r.Path
	switch {
	case r.Method == "":
		return fmt.Errorf("route %q: method is required", r.Path)
	case r.Handler == nil:
		return fmt.Errorf("route %s: handler is required", name)
	case r.Public && !r.Require.IsZero():
		return fmt.Errorf("route %s: public route cannot declare %s", name, r.Require)
	case !r.Public && guard.Identity == nil:
		return fmt.Errorf("route %s: identity middleware is not configured", name)
	case !r.Require.IsZero() && guard.Authorizer == nil:
		return fmt.Errorf("route %s: authorizer is not configured", name)
	}
	return nil
}
