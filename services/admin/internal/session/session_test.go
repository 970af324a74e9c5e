package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goadmin/pkg/permission"
)

type countingLoader struct {
	calls atomic.Int32
	set   permission.Set
	err   error
}

func (l *countingLoader) LoadPermissions(context.Context, int64) (permission.Set, error) {
	l.calls.Add(1)
	return l.set, l.err
}

func TestLoginLogoutCycle(t *testing.T) {
	cache := permission.NewCache(time.Hour)
	loader := &countingLoader{set: permission.SetOf("user:list")}
	m := NewManager(cache, loader)
	ctx := context.Background()

	codes, err := m.OnLogin(ctx, 1)
	if err != nil || !codes.Has("user:list") {
		t.Fatalf("OnLogin = %v, %v", codes.Strings(), err)
	}
	if _, err := cache.GetOrLoad(ctx, 1, loader); err != nil || loader.calls.Load() != 1 {
		t.Fatalf("login should warm the cache, loader calls = %d", loader.calls.Load())
	}

	m.OnLogout(1)
	if !m.Revoked(1) {
		t.Fatalf("logout should revoke")
	}
	if _, err := cache.GetOrLoad(ctx, 1, loader); !errors.Is(err, permission.ErrSubjectRevoked) {
		t.Fatalf("after logout err = %v", err)
	}

	if _, err := m.OnLogin(ctx, 1); err != nil {
		t.Fatalf("second login: %v", err)
	}
	if m.Revoked(1) {
		t.Fatalf("login should lift revocation")
	}
}

func TestLoginFailureLeavesCacheUntouched(t *testing.T) {
	cache := permission.NewCache(time.Hour)
	m := NewManager(cache, &countingLoader{err: permission.ErrSubjectNotFound})
	m.OnUserDeleted(5)

	if _, err := m.OnLogin(context.Background(), 5); !errors.Is(err, permission.ErrSubjectNotFound) {
		t.Fatalf("err = %v", err)
	}
	if !m.Revoked(5) || cache.Len() != 0 {
		t.Fatalf("failed login must not populate or lift revocation")
	}
}

func TestRoleChangesReload(t *testing.T) {
	cache := permission.NewCache(time.Hour)
	loader := &countingLoader{set: permission.SetOf("user:list")}
	m := NewManager(cache, loader)
	ctx := context.Background()

	_, _ = m.OnLogin(ctx, 1)
	_, _ = m.OnLogin(ctx, 2)
	base := loader.calls.Load()

	loader.set = permission.SetOf("user:list", "user:delete")
	m.OnRoleChanged(1)
	got, _ := cache.GetOrLoad(ctx, 1, loader)
	if !got.Has("user:delete") || loader.calls.Load() != base+1 {
		t.Fatalf("role change should reload once, got %v", got.Strings())
	}

	m.OnRolePermissionsChanged(10, []int64{1, 2})
	_, _ = cache.GetOrLoad(ctx, 1, loader)
	_, _ = cache.GetOrLoad(ctx, 2, loader)
	if loader.calls.Load() != base+3 {
		t.Fatalf("role permission change should reload every member, calls = %d", loader.calls.Load()-base)
	}

	m.OnUserDisabled(2)
	m.OnUserEnabled(2)
	if !m.Revoked(2) {
		t.Fatalf("re-enabling keeps old sessions revoked until the next login")
	}
}

func TestPermissionsChangedReloadsEveryone(t *testing.T) {
	cache := permission.NewCache(time.Hour)
	loader := &countingLoader{set: permission.SetOf("user:list")}
	m := NewManager(cache, loader)
	ctx := context.Background()

	_, _ = m.OnLogin(ctx, 1)
	_, _ = m.OnLogin(ctx, 2)
	m.OnLogout(2)
	base := loader.calls.Load()

	m.OnPermissionsChanged("test")
	if _, err := cache.GetOrLoad(ctx, 1, loader); err != nil || loader.calls.Load() != base+1 {
		t.Fatalf("subject 1 should reload, err = %v", err)
	}
	if !m.Revoked(2) {
		t.Fatalf("logged-out subject must stay revoked")
	}
}
