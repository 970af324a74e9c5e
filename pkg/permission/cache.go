package permission

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultTTL 权限快照默认有效期
const DefaultTTL = time.Hour

type snapshot struct {
	codes      Set
	capturedAt time.Time
}

// Cache 进程内权限缓存：subjectID -> 权限快照
//
// 读多写少，使用读写锁；快照超过 TTL 后视为过期，下次访问时重新加载而不是删除。
// 同一主体并发未命中时可能各自触发一次加载，这里不做合并，加载相对请求量足够便宜。
type Cache struct {
	mu      sync.RWMutex
	entries map[int64]snapshot
	revoked map[int64]time.Time
	// epoch 在每次 Invalidate/Revoke/Populate/Clear 时递增；
	// 开始于旧 epoch 的加载结果只返回给自己的调用方，不写入缓存。
	epoch uint64

	ttl     time.Duration
	now     func() time.Time
	metrics *Metrics
}

// Option 缓存选项
type Option func(*Cache)

// WithClock 注入时钟，测试中用于模拟时间流逝
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMetrics 注入指标
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// NewCache 创建权限缓存，ttl<=0 时使用 DefaultTTL
func NewCache(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[int64]snapshot),
		revoked: make(map[int64]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL 快照有效期
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

type loadResult struct {
	codes Set
	err   error
}

// GetOrLoad 返回主体的权限集合
//
// 新鲜快照直接返回；缺失或过期时调用 loader 并写入新快照。加载与请求的取消解耦：
// ctx 被取消时本调用立即返回 ctx.Err()，加载仍会完成并填充缓存。
func (c *Cache) GetOrLoad(ctx context.Context, subjectID int64, loader Loader) (Set, error) {
	c.mu.RLock()
	_, revoked := c.revoked[subjectID]
	snap, ok := c.entries[subjectID]
	epoch := c.epoch
	c.mu.RUnlock()

	if revoked {
		c.metrics.lookup(LookupRevoked)
		return Set{}, ErrSubjectRevoked
	}
	if ok && c.now().Sub(snap.capturedAt) < c.ttl {
		c.metrics.lookup(LookupHit)
		return snap.codes, nil
	}
	if ok {
		c.metrics.lookup(LookupStale)
	} else {
		c.metrics.lookup(LookupAbsent)
	}

	done := make(chan loadResult, 1)
	go func() {
		codes, err := c.load(context.WithoutCancel(ctx), subjectID, epoch, loader)
		done <- loadResult{codes: codes, err: err}
	}()

	select {
	case res := <-done:
		return res.codes, res.err
	case <-ctx.Done():
		return Set{}, ctx.Err()
	}
}

func (c *Cache) load(ctx context.Context, subjectID int64, epoch uint64, loader Loader) (Set, error) {
	codes, err := loader.LoadPermissions(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			c.metrics.load("not_found")
			c.mu.Lock()
			if c.epoch == epoch {
				delete(c.entries, subjectID)
			}
			c.mu.Unlock()
		} else {
			c.metrics.load("error")
		}
		return Set{}, err
	}
	c.metrics.load("ok")

	c.mu.Lock()
	if c.epoch == epoch {
		c.entries[subjectID] = snapshot{codes: codes, capturedAt: c.now()}
	}
	c.mu.Unlock()
	return codes, nil
}

// Populate 登录成功后写入快照，并解除该主体的撤销标记
func (c *Cache) Populate(subjectID int64, codes Set) {
	c.mu.Lock()
	c.epoch++
	delete(c.revoked, subjectID)
	c.entries[subjectID] = snapshot{codes: codes, capturedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate 删除快照，下一次访问必然未命中并透明地重新加载（角色或角色权限变更）
func (c *Cache) Invalidate(subjectID int64) {
	c.mu.Lock()
	c.epoch++
	delete(c.entries, subjectID)
	c.mu.Unlock()
	c.metrics.invalidation("invalidate")
}

// InvalidateMany 批量删除快照
func (c *Cache) InvalidateMany(subjectIDs []int64) {
	if len(subjectIDs) == 0 {
		return
	}
	c.mu.Lock()
	c.epoch++
	for _, id := range subjectIDs {
		delete(c.entries, id)
	}
	c.mu.Unlock()
	c.metrics.invalidation("invalidate")
}

// InvalidateAll 删除全部快照，保留撤销标记
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.epoch++
	c.entries = make(map[int64]snapshot)
	c.mu.Unlock()
	c.metrics.invalidation("invalidate_all")
}

// Revoke 删除快照并标记撤销（登出、删除、禁用），之后的检查返回 ErrSubjectRevoked，
// 直到该主体再次登录调用 Populate
func (c *Cache) Revoke(subjectID int64) {
	c.mu.Lock()
	c.epoch++
	delete(c.entries, subjectID)
	c.revoked[subjectID] = c.now()
	c.mu.Unlock()
	c.metrics.invalidation("revoke")
}

// Revoked 主体是否处于撤销状态
func (c *Cache) Revoked(subjectID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.revoked[subjectID]
	return ok
}

// PruneRevoked 清理早于 maxAge 的撤销标记，返回清理数量
//
// maxAge 应不小于令牌有效期：超过有效期的旧令牌在身份认证阶段即被拒绝，标记不再需要。
func (c *Cache) PruneRevoked(maxAge time.Duration) int {
	cutoff := c.now().Add(-maxAge)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, at := range c.revoked {
		if at.Before(cutoff) {
			delete(c.revoked, id)
			n++
		}
	}
	return n
}

// Clear 清空全部快照与撤销标记
func (c *Cache) Clear() {
	c.mu.Lock()
	c.epoch++
	c.entries = make(map[int64]snapshot)
	c.revoked = make(map[int64]time.Time)
	c.mu.Unlock()
	c.metrics.invalidation("clear")
}

// Len 当前快照数量
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
