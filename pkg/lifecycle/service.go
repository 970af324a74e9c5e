package lifecycle

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goadmin/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Hook 生命周期钩子
type Hook func(*Service) error

// task 周期任务
type task struct {
	name     string
	interval time.Duration
	fn       func(context.Context)
}

// Service 服务包装器：启动钩子 -> 监听 -> 就绪钩子 -> 等待信号 -> 停止钩子
type Service struct {
	name            string
	addr            string
	app             *fiber.App
	shutdownTimeout time.Duration
	lifecycle       *Manager

	onStart []Hook
	onReady []Hook
	onStop  []Hook
	tasks   []task

	ln      net.Listener
	errCh   chan error
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// Name 服务名称
func (s *Service) Name() string {
	return s.name
}

// App Fiber应用
func (s *Service) App() *fiber.App {
	return s.app
}

// Lifecycle 获取生命周期管理器
func (s *Service) Lifecycle() *Manager {
	return s.lifecycle
}

// Addr 实际监听地址，Start 之后可用
func (s *Service) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Start 执行启动钩子并开始监听，返回时服务已就绪
func (s *Service) Start() error {
	s.lifecycle.Emit(EventStarting)

	for _, fn := range s.onStart {
		if err := fn(s); err != nil {
			return fmt.Errorf("start hook: %w", err)
		}
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.ln = ln
	s.lifecycle.Emit(EventStarted)

	s.errCh = make(chan error, 1)
	go func() {
		logger.Info("服务启动", zap.String("service", s.name), zap.String("address", s.Addr()))
		if err := s.app.Listener(ln); err != nil {
			s.errCh <- err
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for _, t := range s.tasks {
		s.workers.Add(1)
		go s.runTask(ctx, t)
	}

	for _, fn := range s.onReady {
		if err := fn(s); err != nil {
			return fmt.Errorf("ready hook: %w", err)
		}
	}
	s.lifecycle.Emit(EventReady)
	return nil
}

func (s *Service) runTask(ctx context.Context, t task) {
	defer s.workers.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fn(ctx)
		}
	}
}

// Run 启动服务并阻塞到收到退出信号
func (s *Service) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		logger.Info("收到退出信号，正在关闭服务...")
	case err := <-s.errCh:
		return fmt.Errorf("server error: %w", err)
	}

	return s.Shutdown()
}

// Shutdown 优雅关闭服务
func (s *Service) Shutdown() error {
	s.lifecycle.Emit(EventStopping)

	if s.cancel != nil {
		s.cancel()
	}
	s.workers.Wait()

	var shutdownErr error
	if s.app != nil {
		if err := s.app.ShutdownWithTimeout(s.shutdownTimeout); err != nil {
			logger.Error("关闭HTTP服务失败", zap.Error(err))
			shutdownErr = err
		}
	}

	for _, fn := range s.onStop {
		if err := fn(s); err != nil {
			logger.Error("停止钩子执行失败", zap.Error(err))
		}
	}

	s.lifecycle.Emit(EventStopped)
	logger.Info("服务已关闭", zap.String("service", s.name))
	return shutdownErr
}
