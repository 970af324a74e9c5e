package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goadmin/pkg/auth"
	"github.com/goadmin/pkg/config"
	"github.com/goadmin/pkg/errors"
	"github.com/goadmin/pkg/middleware"
	"github.com/goadmin/pkg/permission"
	"github.com/goadmin/pkg/response"
	"github.com/gofiber/fiber/v2"
)

// memoryStore 可变的权限数据源
type memoryStore struct {
	mu    sync.Mutex
	perms map[int64]permission.Set
	loads atomic.Int32
}

func (s *memoryStore) LoadPermissions(_ context.Context, id int64) (permission.Set, error) {
	s.loads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.perms[id]
	if !ok {
		return permission.Set{}, permission.ErrSubjectNotFound
	}
	return set, nil
}

type userController struct {
	hits atomic.Int32
}

func (u *userController) Prefix() string { return "/api/users" }

func (u *userController) Routes() []Route {
	ok := func(c *fiber.Ctx) error {
		u.hits.Add(1)
		return response.Success(c, nil)
	}
	return []Route{
		{Method: http.MethodGet, Path: "", Handler: ok, Require: permission.Single("user:list")},
		{Method: http.MethodDelete, Path: "/:id", Handler: ok, Require: permission.All("user:list", "user:delete")},
		{Method: http.MethodPut, Path: "/:id/role", Handler: ok, Require: permission.Any("user:assign-role", "role:update")},
		{Method: http.MethodGet, Path: "/me", Handler: ok},
		{Method: http.MethodGet, Path: "/health", Handler: ok, Public: true},
	}
}

type harness struct {
	app   *fiber.App
	jwt   *auth.JWTManager
	cache *permission.Cache
	store *memoryStore
	ctrl  *userController
	now   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		now:   time.Unix(1_700_000_000, 0),
		store: &memoryStore{perms: map[int64]permission.Set{1: permission.SetOf("user:list")}},
		ctrl:  &userController{},
	}
	clock := func() time.Time { return h.now }
	h.jwt = auth.NewJWTManager(&config.JWTConfig{
		Secret: "0123456789abcdef0123456789abcdef",
		Issuer: "goadmin",
		Expire: 3600,
	}, auth.WithClock(clock))
	h.cache = permission.NewCache(time.Hour, permission.WithClock(clock))

	h.app = fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	Register(h.app, Guard{
		Identity:   middleware.Identity(h.jwt),
		Authorizer: middleware.NewAuthorizer(h.cache, h.store, nil),
	}, h.ctrl)
	return h
}

func (h *harness) request(t *testing.T, method, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var body response.Response
	_ = json.Unmarshal(raw, &body)
	return resp.StatusCode, body.Message
}

func (h *harness) login(t *testing.T, id int64) string {
	t.Helper()
	token, err := h.jwt.GenerateToken(id, "alice")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	set, err := h.store.LoadPermissions(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadPermissions: %v", err)
	}
	h.cache.Populate(id, set)
	return token
}

func TestSingleRequirementGranted(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, 1)

	status, _ := h.request(t, http.MethodGet, "/api/users", token)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if h.ctrl.hits.Load() != 1 {
		t.Fatalf("handler not reached")
	}
}

func TestAllRequirementDenied(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, 1)

	status, msg := h.request(t, http.MethodDelete, "/api/users/2", token)
	if status != http.StatusForbidden || msg != errors.ErrPermissionDenied.Message {
		t.Fatalf("got %d %q, want PermissionDenied", status, msg)
	}
	if h.ctrl.hits.Load() != 0 {
		t.Fatalf("handler must not run on denial")
	}
}

func TestExpiredTokenNeverReachesHandler(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, 1)
	h.now = h.now.Add(time.Hour)

	for _, path := range []string{"/api/users", "/api/users/me"} {
		status, msg := h.request(t, http.MethodGet, path, token)
		if status != http.StatusUnauthorized || msg != errors.ErrInvalidCredentials.Message {
			t.Fatalf("%s: got %d %q, want InvalidCredentials", path, status, msg)
		}
	}
	if got := h.ctrl.hits.Load(); got != 0 {
		t.Fatalf("handler invoked %d times with expired token", got)
	}
}

func TestLogoutRevokesUnexpiredToken(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, 1)

	if status, _ := h.request(t, http.MethodGet, "/api/users", token); status != http.StatusOK {
		t.Fatalf("before logout = %d", status)
	}

	// 注销：令牌仍在有效期内，用户在数据源中依然存在
	h.cache.Revoke(1)
	loads := h.store.loads.Load()

	status, msg := h.request(t, http.MethodGet, "/api/users", token)
	if status != http.StatusUnauthorized || msg != errors.ErrInvalidCredentials.Message {
		t.Fatalf("after logout got %d %q, want forced re-authentication", status, msg)
	}
	if h.store.loads.Load() != loads {
		t.Fatalf("revoked subject must not be reloaded from the store")
	}
	if h.ctrl.hits.Load() != 1 {
		t.Fatalf("handler reached after logout")
	}

	// 重新登录后恢复
	token = h.login(t, 1)
	if status, _ := h.request(t, http.MethodGet, "/api/users", token); status != http.StatusOK {
		t.Fatalf("after re-login = %d", status)
	}
}

func TestInvalidatePicksUpNewPermissions(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, 1)

	status, _ := h.request(t, http.MethodPut, "/api/users/2/role", token)
	if status != http.StatusForbidden {
		t.Fatalf("before grant = %d", status)
	}

	h.store.mu.Lock()
	h.store.perms[1] = permission.SetOf("user:list", "role:update")
	h.store.mu.Unlock()
	h.cache.Invalidate(1)

	if status, _ := h.request(t, http.MethodPut, "/api/users/2/role", token); status != http.StatusOK {
		t.Fatalf("after invalidate = %d", status)
	}
}

func TestAccessLevels(t *testing.T) {
	h := newHarness(t)

	if status, _ := h.request(t, http.MethodGet, "/api/users/health", ""); status != http.StatusOK {
		t.Fatalf("public route = %d", status)
	}
	status, msg := h.request(t, http.MethodGet, "/api/users/me", "")
	if status != http.StatusUnauthorized || msg != errors.ErrMissingCredentials.Message {
		t.Fatalf("authenticated route without token = %d %q", status, msg)
	}

	// 只要求登录的路由不查询权限
	token, _ := h.jwt.GenerateToken(42, "bob")
	if status, _ := h.request(t, http.MethodGet, "/api/users/me", token); status != http.StatusOK {
		t.Fatalf("authenticated route = %d", status)
	}
	if h.store.loads.Load() != 0 {
		t.Fatalf("identity-only route should not load permissions")
	}

	// 数据源中不存在的主体
	status, msg = h.request(t, http.MethodGet, "/api/users", token)
	if status != http.StatusUnauthorized || msg != errors.ErrInvalidCredentials.Message {
		t.Fatalf("unknown subject = %d %q", status, msg)
	}
}

func TestChainRejectsBadDeclarations(t *testing.T) {
	guard := Guard{Identity: func(c *fiber.Ctx) error { return c.Next() }}
	handler := func(c *fiber.Ctx) error { return nil }

	cases := map[string]Route{
		"no handler":         {Method: http.MethodGet, Path: "/a"},
		"no method":          {Path: "/a", Handler: handler},
		"public with guard":  {Method: http.MethodGet, Path: "/a", Handler: handler, Public: true, Require: permission.Single("a:b")},
		"missing authorizer": {Method: http.MethodGet, Path: "/a", Handler: handler, Require: permission.Single("a:b")},
	}
	for name, route := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			Chain(guard, route)
		})
	}

	if n := len(Chain(guard, Route{Method: http.MethodGet, Path: "/a", Handler: handler})); n != 2 {
		t.Fatalf("authenticated chain length = %d, want 2", n)
	}
	if n := len(Chain(Guard{}, Route{Method: http.MethodGet, Path: "/a", Handler: handler, Public: true})); n != 1 {
		t.Fatalf("public chain length = %d, want 1", n)
	}
}
