package application

import (
	"context"
	"sync"
	"time"

	"dovita-portal/internal/domain"
	"dovita-portal/internal/ports"
)

// StartupFetchTimeout is how long consumers wait on a first fetch before the
// cache surfaces a timeout state. The fetch itself is not cancelled and may
// still land afterward.
const StartupFetchTimeout = 3 * time.Second

type CacheStatus string

const (
	CacheIdle    CacheStatus = "idle"
	CacheLoading CacheStatus = "loading"
	CacheReady   CacheStatus = "ready"
	CacheTimeout CacheStatus = "timeout"
)

// PermissionCache holds the last-known-good permission set: an in-memory
// mirror over a durable slot. SaveIfValid is the single mutation gate and
// refuses to replace good data with an empty or all-false fetch result,
// which is read as a transient failure rather than "user has no
// permissions". Only an explicit sign-out clears it.
type PermissionCache struct {
	store    ports.PermissionStore
	identity ports.IdentityStore
	oracle   *SessionOracle
	logger   ports.Logger
	timeout  time.Duration

	mu       sync.RWMutex
	perms    []domain.ModulePermission
	status   CacheStatus
	fetching bool
}

func NewPermissionCache(store ports.PermissionStore, identity ports.IdentityStore, oracle *SessionOracle, logger ports.Logger) *PermissionCache {
	return &PermissionCache{
		store:    store,
		identity: identity,
		oracle:   oracle,
		logger:   logger,
		timeout:  StartupFetchTimeout,
		perms:    []domain.ModulePermission{},
		status:   CacheIdle,
	}
}

// Load reads the durable slot at startup. Absent or unparsable data is an
// empty cache, never an error.
func (c *PermissionCache) Load(ctx context.Context) []domain.ModulePermission {
	perms, ok, err := c.store.Read(ctx)
	if err != nil {
		c.logger.Warn(ctx, "permission cache read failed, starting empty", "error", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok && len(perms) > 0 {
		c.perms = perms
		c.status = CacheReady
	}
	return c.snapshotLocked()
}

// Snapshot returns a copy of the in-memory permission set.
func (c *PermissionCache) Snapshot() []domain.ModulePermission {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *PermissionCache) snapshotLocked() []domain.ModulePermission {
	out := make([]domain.ModulePermission, len(c.perms))
	copy(out, c.perms)
	return out
}

func (c *PermissionCache) Status() CacheStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Allows reports whether the cached set grants the capability on a module.
func (c *PermissionCache) Allows(module string, cap domain.Capability) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.perms {
		if p.Module == module && p.Grants(cap) {
			return true
		}
	}
	return false
}

// SaveIfValid overwrites durable and in-memory state only when the candidate
// contains at least one viewable entry; otherwise the prior good value is
// kept untouched.
func (c *PermissionCache) SaveIfValid(ctx context.Context, candidate []domain.ModulePermission) {
	if !hasViewable(candidate) {
		c.logger.Warn(ctx, "rejecting permission set with no viewable entries", "size", len(candidate))
		return
	}
	if err := c.store.Write(ctx, candidate); err != nil {
		// Memory still advances; the durable copy catches up on the next
		// accepted save.
		c.logger.Warn(ctx, "permission cache write failed", "error", err)
	}
	c.mu.Lock()
	c.perms = append([]domain.ModulePermission{}, candidate...)
	c.status = CacheReady
	c.mu.Unlock()
}

// Clear wipes the cache. Sign-out is its only caller.
func (c *PermissionCache) Clear(ctx context.Context) {
	if err := c.store.Delete(ctx); err != nil {
		c.logger.Warn(ctx, "permission cache delete failed", "error", err)
	}
	c.mu.Lock()
	c.perms = []domain.ModulePermission{}
	c.status = CacheIdle
	c.mu.Unlock()
}

// FetchOnce reads the authoritative rows for the current session's user and
// runs them through SaveIfValid. A call while a fetch is already in flight
// is a no-op: the second caller gets whatever the in-flight fetch produces,
// not a fresh result of its own.
func (c *PermissionCache) FetchOnce(ctx context.Context) {
	c.mu.Lock()
	if c.fetching {
		c.mu.Unlock()
		return
	}
	c.fetching = true
	empty := len(c.perms) == 0
	if empty {
		c.status = CacheLoading
	}
	c.mu.Unlock()

	// Surfaces the timeout state to consumers without cancelling the fetch.
	watchdog := time.AfterFunc(c.timeout, func() {
		c.mu.Lock()
		if c.fetching && len(c.perms) == 0 {
			c.status = CacheTimeout
		}
		c.mu.Unlock()
	})

	defer func() {
		watchdog.Stop()
		c.mu.Lock()
		c.fetching = false
		if c.status == CacheLoading {
			c.status = CacheIdle
		}
		c.mu.Unlock()
	}()

	userID := c.oracle.UserIDOrEmpty(ctx)
	if userID == "" {
		c.logger.Warn(ctx, "permission fetch skipped, no session")
		return
	}
	perms, err := c.identity.PermissionsByUser(ctx, userID)
	if err != nil {
		c.logger.Warn(ctx, "permission fetch failed", "user_id", userID, "error", err)
		return
	}
	c.SaveIfValid(ctx, perms)
}

func hasViewable(perms []domain.ModulePermission) bool {
	for _, p := range perms {
		if p.CanView {
			return true
		}
	}
	return false
}
