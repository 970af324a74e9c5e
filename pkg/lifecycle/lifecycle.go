package lifecycle

import (
	"sync"
	"time"
)

// Event 生命周期事件类型
type Event string

const (
	EventStarting Event = "starting" // 服务启动中
	EventStarted  Event = "started"  // 服务已启动
	EventReady    Event = "ready"    // 服务就绪（可接收请求）
	EventStopping Event = "stopping" // 服务停止中
	EventStopped  Event = "stopped"  // 服务已停止
)

// Message 生命周期消息
type Message struct {
	Service   string
	Event     Event
	Timestamp time.Time
}

// Handler 生命周期事件处理器
type Handler func(msg *Message)

// Manager 进程内生命周期事件分发
type Manager struct {
	service     string
	mu          sync.RWMutex
	handlers    map[Event][]Handler
	allHandlers []Handler
}

// NewManager 创建生命周期管理器
func NewManager(service string) *Manager {
	return &Manager{
		service:  service,
		handlers: make(map[Event][]Handler),
	}
}

// OnEvent 监听指定事件
func (m *Manager) OnEvent(event Event, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], handler)
}

// OnAnyEvent 监听所有事件
func (m *Manager) OnAnyEvent(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allHandlers = append(m.allHandlers, handler)
}

// Emit 同步分发事件
func (m *Manager) Emit(event Event) {
	msg := &Message{Service: m.service, Event: event, Timestamp: time.Now()}

	m.mu.RLock()
	handlers := append([]Handler(nil), m.handlers[event]...)
	handlers = append(handlers, m.allHandlers...)
	m.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}
