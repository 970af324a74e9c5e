package lifecycle

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func TestServiceStartShutdown(t *testing.T) {
	var (
		mu     sync.Mutex
		events []Event
		order  []string
		ticks  atomic.Int32
	)
	record := func(s string) Hook {
		return func(*Service) error {
			mu.Lock()
			order = append(order, s)
			mu.Unlock()
			return nil
		}
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	b := NewBuilder("test").
		WithAddress("127.0.0.1:0").
		WithApp(app).
		WithShutdownTimeout(time.Second).
		OnStart(record("start")).
		OnReady(record("ready")).
		OnStop(record("stop")).
		Every("tick", 10*time.Millisecond, func(context.Context) { ticks.Add(1) })
	svc := b.Build()
	svc.Lifecycle().OnAnyEvent(func(m *Message) {
		mu.Lock()
		events = append(events, m.Event)
		mu.Unlock()
	})

	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + svc.Addr() + "/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ticks.Load() == 0 {
		t.Fatalf("periodic task never ran")
	}

	if err := svc.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if ticks.Load() != after {
		t.Fatalf("periodic task still running after shutdown")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "start" || order[1] != "ready" || order[2] != "stop" {
		t.Fatalf("hook order = %v", order)
	}
	want := []Event{EventStarting, EventStarted, EventReady, EventStopping, EventStopped}
	if len(events) != len(want) {
		t.Fatalf("events = %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestStartHookFailureAborts(t *testing.T) {
	svc := NewBuilder("bad").
		WithAddress("127.0.0.1:0").
		OnStart(func(*Service) error { return context.Canceled }).
		Build()
	if err := svc.Start(); err == nil {
		t.Fatalf("expected start hook error")
	}
	if svc.ln != nil {
		t.Fatalf("listener should not be opened when a start hook fails")
	}
}
