package middleware

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goadmin/pkg/auth"
	"github.com/goadmin/pkg/config"
	"github.com/goadmin/pkg/errors"
	"github.com/goadmin/pkg/permission"
	"github.com/goadmin/pkg/response"
	"github.com/gofiber/fiber/v2"
)

var testJWT = &config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef", Issuer: "test", Expire: 3600}

type result struct {
	status int
	body   response.Response
}

func do(t *testing.T, app *fiber.App, method, path, token string) result {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var r result
	r.status = resp.StatusCode
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &r.body); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
	}
	return r
}

func expect(t *testing.T, got result, want *errors.AppError) {
	t.Helper()
	if got.status != want.Code || got.body.Message != want.Message {
		t.Fatalf("got %d %q, want %d %q", got.status, got.body.Message, want.Code, want.Message)
	}
}

func TestIdentity(t *testing.T) {
	jwtm := auth.NewJWTManager(testJWT)
	app := fiber.New()
	app.Get("/me", Identity(jwtm), func(c *fiber.Ctx) error {
		s, ok := SubjectFromContext(c)
		if !ok {
			t.Errorf("subject missing from context")
		}
		if GetUserID(c) != s.ID || GetUsername(c) != s.Name {
			t.Errorf("locals disagree with subject")
		}
		return response.Success(c, s.ID)
	})

	expect(t, do(t, app, http.MethodGet, "/me", ""), errors.ErrMissingCredentials)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("non-bearer scheme = %d", resp.StatusCode)
	}

	expect(t, do(t, app, http.MethodGet, "/me", "not-a-token"), errors.ErrInvalidCredentials)

	other := auth.NewJWTManager(&config.JWTConfig{Secret: "fedcba9876543210fedcba9876543210", Issuer: "test", Expire: 3600})
	forged, _ := other.GenerateToken(1, "root")
	expect(t, do(t, app, http.MethodGet, "/me", forged), errors.ErrInvalidCredentials)

	past := time.Now().Add(-2 * time.Hour)
	expired, _ := auth.NewJWTManager(testJWT, auth.WithClock(func() time.Time { return past })).GenerateToken(1, "root")
	expect(t, do(t, app, http.MethodGet, "/me", expired), errors.ErrInvalidCredentials)

	token, _ := jwtm.GenerateToken(7, "alice")
	if r := do(t, app, http.MethodGet, "/me", token); r.status != http.StatusOK {
		t.Fatalf("valid token = %d %q", r.status, r.body.Message)
	}
}

func TestBearerTokenCaseInsensitive(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(BearerToken(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer  abc ")
	resp, _ := app.Test(req, -1)
	raw, _ := io.ReadAll(resp.Body)
	if string(raw) != "abc" {
		t.Fatalf("BearerToken = %q", raw)
	}
}

type stubLoader struct {
	calls atomic.Int32
	fn    func(id int64) (permission.Set, error)
}

func (l *stubLoader) LoadPermissions(_ context.Context, id int64) (permission.Set, error) {
	l.calls.Add(1)
	return l.fn(id)
}

func TestRequire(t *testing.T) {
	jwtm := auth.NewJWTManager(testJWT)
	storeDown := stderrors.New("connection refused")
	loader := &stubLoader{fn: func(id int64) (permission.Set, error) {
		switch id {
		case 1:
			return permission.SetOf("user:list"), nil
		case 2:
			return permission.Set{}, permission.ErrSubjectNotFound
		case 3:
			return permission.Set{}, storeDown
		default:
			return permission.SetOf(), nil
		}
	}}
	cache := permission.NewCache(time.Hour)
	authz := NewAuthorizer(cache, loader, nil)

	var reached atomic.Int32
	app := fiber.New()
	app.Get("/users", Identity(jwtm), authz.Require(permission.Single("user:list")), func(c *fiber.Ctx) error {
		reached.Add(1)
		if !GetPermissions(c).Has("user:list") {
			t.Errorf("permissions not exposed to handler")
		}
		return response.Success(c, nil)
	})
	app.Get("/no-identity", authz.Require(permission.Single("user:list")), func(c *fiber.Ctx) error {
		reached.Add(1)
		return nil
	})

	tok := func(id int64) string {
		s, _ := jwtm.GenerateToken(id, "u")
		return s
	}

	if r := do(t, app, http.MethodGet, "/users", tok(1)); r.status != http.StatusOK {
		t.Fatalf("granted = %d", r.status)
	}
	expect(t, do(t, app, http.MethodGet, "/users", tok(9)), errors.ErrPermissionDenied)
	expect(t, do(t, app, http.MethodGet, "/users", tok(2)), errors.ErrInvalidCredentials)
	expect(t, do(t, app, http.MethodGet, "/users", tok(3)), errors.ErrAuthorizationStoreUnavailable)
	expect(t, do(t, app, http.MethodGet, "/no-identity", ""), errors.ErrInternalServer)

	// 数据源故障不缓存，恢复后立即生效
	loader.fn = func(int64) (permission.Set, error) { return permission.SetOf("user:list"), nil }
	if r := do(t, app, http.MethodGet, "/users", tok(3)); r.status != http.StatusOK {
		t.Fatalf("after recovery = %d", r.status)
	}

	cache.Revoke(1)
	expect(t, do(t, app, http.MethodGet, "/users", tok(1)), errors.ErrInvalidCredentials)

	if got := reached.Load(); got != 2 {
		t.Fatalf("handler reached %d times, want 2", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("burst should be allowed")
	}
	if rl.Allow("a") {
		t.Fatalf("third request within the same instant should be limited")
	}
	if !rl.Allow("b") {
		t.Fatalf("buckets are per client")
	}

	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Fatalf("token should refill after a second")
	}

	now = now.Add(10 * time.Minute)
	rl.Allow("c")
	if _, ok := rl.buckets["a"]; ok {
		t.Fatalf("idle bucket should be swept")
	}

	if !NewRateLimiter(0, 0).Allow("x") {
		t.Fatalf("zero rate disables limiting")
	}
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Recovery(), RequestID())
	app.Get("/missing", func(c *fiber.Ctx) error { return errors.NotFound("用户") })
	app.Get("/boom", func(c *fiber.Ctx) error { return stderrors.New("boom") })
	app.Get("/panic", func(c *fiber.Ctx) error { panic("bad") })

	if r := do(t, app, http.MethodGet, "/missing", ""); r.status != http.StatusNotFound || r.body.Message != "用户不存在" {
		t.Fatalf("missing = %d %q", r.status, r.body.Message)
	}
	expect(t, do(t, app, http.MethodGet, "/boom", ""), errors.ErrInternalServer)
	expect(t, do(t, app, http.MethodGet, "/panic", ""), errors.ErrInternalServer)
	if r := do(t, app, http.MethodGet, "/nowhere", ""); r.status != http.StatusNotFound {
		t.Fatalf("unknown route = %d", r.status)
	}

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("X-Request-ID", "req-1")
	resp, _ := app.Test(req, -1)
	if resp.Header.Get("X-Request-ID") != "req-1" {
		t.Fatalf("request id not echoed")
	}
}
