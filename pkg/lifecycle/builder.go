package lifecycle

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Builder 服务构建器 - 链式调用创建服务
type Builder struct {
	svc *Service
}

// NewBuilder 创建服务构建器
func NewBuilder(name string) *Builder {
	return &Builder{svc: &Service{
		name:            name,
		shutdownTimeout: 10 * time.Second,
		lifecycle:       NewManager(name),
	}}
}

// WithAddress 设置服务地址
func (b *Builder) WithAddress(addr string) *Builder {
	b.svc.addr = addr
	return b
}

// WithApp 设置Fiber应用
func (b *Builder) WithApp(app *fiber.App) *Builder {
	b.svc.app = app
	return b
}

// WithShutdownTimeout 设置优雅关闭超时
func (b *Builder) WithShutdownTimeout(d time.Duration) *Builder {
	b.svc.shutdownTimeout = d
	return b
}

// OnStart 添加启动钩子
func (b *Builder) OnStart(fn Hook) *Builder {
	b.svc.onStart = append(b.svc.onStart, fn)
	return b
}

// OnReady 添加就绪钩子
func (b *Builder) OnReady(fn Hook) *Builder {
	b.svc.onReady = append(b.svc.onReady, fn)
	return b
}

// OnStop 添加停止钩子
func (b *Builder) OnStop(fn Hook) *Builder {
	b.svc.onStop = append(b.svc.onStop, fn)
	return b
}

// On 监听生命周期事件
func (b *Builder) On(event Event, handler Handler) *Builder {
	b.svc.lifecycle.OnEvent(event, handler)
	return b
}

// Every 添加周期任务，服务关闭时停止
func (b *Builder) Every(name string, interval time.Duration, fn func(context.Context)) *Builder {
	if interval > 0 {
		b.svc.tasks = append(b.svc.tasks, task{name: name, interval: interval, fn: fn})
	}
	return b
}

// Build 构建服务
func (b *Builder) Build() *Service {
	if b.svc.app == nil {
		b.svc.app = fiber.New()
	}
	return b.svc
}

// Run 构建并运行服务
func (b *Builder) Run() error {
	return b.Build().Run()
}
